package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/models"
)

func TestEmbeddedDeploymentsLoad(t *testing.T) {
	names := Names()
	require.ElementsMatch(t, []string{"carekenya", "nhc-langata", "st-marys-parish"}, names)

	for _, name := range names {
		d, err := Load(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, d.Name)
		assert.True(t, d.Catalog.Has(OpLogin), name)
		assert.True(t, d.Catalog.Has(OpListBroadcasts), name)
		for _, op := range d.Catalog.Operations() {
			assert.True(t, op.Known(), "%s: %s", name, op)
		}
	}
}

func TestDeploymentsDifferInOperationSets(t *testing.T) {
	care, err := Load("carekenya")
	require.NoError(t, err)
	nhc, err := Load("nhc-langata")
	require.NoError(t, err)

	assert.True(t, care.Catalog.Has(OpLogAttendance))
	assert.False(t, nhc.Catalog.Has(OpLogAttendance))
	assert.True(t, nhc.Catalog.Has(OpListPhases))
	assert.True(t, care.Catalog.Has(OpListPhases))
	assert.True(t, care.Catalog.Has(OpListBlocks))
	assert.True(t, care.Catalog.Has(OpListAdminConversations))
	assert.False(t, nhc.Catalog.Has(OpSendChatReply))

	e, err := care.Catalog.Resolve(OpListBroadcasts)
	require.NoError(t, err)
	assert.Equal(t, "https://n8n.tenear.com/webhook/carekenya/broadcasts", e.URL)
	assert.Equal(t, "GET", e.Method)

	e, err = care.Catalog.Resolve(OpSendChatMessage)
	require.NoError(t, err)
	assert.Equal(t, "https://n8n.tenear.com/webhook/welfare/chat", e.URL)
	assert.Equal(t, "POST", e.Method)

	e, err = care.Catalog.Resolve(OpListPhases)
	require.NoError(t, err)
	assert.Equal(t, "https://n8n.tenear.com/webhook/carekenya/phases", e.URL)

	e, err = care.Catalog.Resolve(OpSendChatReply)
	require.NoError(t, err)
	assert.Equal(t, "https://n8n.tenear.com/webhook/welfare/chat-reply", e.URL)
	assert.Equal(t, "POST", e.Method)
}

func TestResolveMissingOperationIsConfigurationError(t *testing.T) {
	d, err := Load("nhc-langata")
	require.NoError(t, err)

	_, err = d.Catalog.Resolve(OpLogAttendance)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	_, err = d.Catalog.Resolve(Operation("nonexistent-op"))
	assert.ErrorIs(t, err, apperr.ErrConfiguration)

	var nilCatalog *Catalog
	_, err = nilCatalog.Resolve(OpLogin)
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestLoadUnknownDeployment(t *testing.T) {
	_, err := Load("atlantis")
	assert.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestDeploymentPolicies(t *testing.T) {
	parish, err := Load("st-marys-parish")
	require.NoError(t, err)
	assert.Equal(t, "Sunday Service", parish.Broadcasts.ServiceTimeCategory)
	assert.Len(t, parish.Broadcasts.ServiceTimes, 3)
	assert.True(t, parish.Broadcasts.AllowsScope(models.ScopeKindWardens))
	assert.False(t, parish.Broadcasts.AllowsScope(models.ScopeKindBlock))
	assert.True(t, parish.Login.RequiresSecondary())

	care, err := Load("carekenya")
	require.NoError(t, err)
	assert.False(t, care.Login.RequiresSecondary())
	id, sec := care.Login.Fields()
	assert.Equal(t, "phone", id)
	assert.Equal(t, "member_id", sec)

	nhc, err := Load("nhc-langata")
	require.NoError(t, err)
	id, sec = nhc.Login.Fields()
	assert.Equal(t, "email", id)
	assert.Equal(t, "apartment_id", sec)
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	cases := map[string]string{
		"unknown op": `
name: x
base_url: https://example.com/hook
operations:
  login: /login
  launch-rockets: /boom
`,
		"missing login": `
name: x
base_url: https://example.com/hook
operations:
  list-broadcasts: /broadcasts
`,
		"relative url without base": `
name: x
operations:
  login: /login
`,
		"bad method": `
name: x
base_url: https://example.com/hook
operations:
  login:
    url: /login
    method: DELETE
`,
		"bad recipient option": `
name: x
base_url: https://example.com/hook
broadcasts:
  recipient_options: [everyone]
operations:
  login: /login
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, apperr.ErrConfiguration)
		})
	}
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: estate
base_url: https://hooks.example.com/estate/
operations:
  login: login
  list-broadcasts: broadcasts
`), 0o600))

	d, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "estate", d.TenantID)
	assert.Equal(t, ShapePhoneMember, d.Login.Shape)
	assert.Equal(t, 2000, d.Broadcasts.MaxMessageLength)
	assert.Equal(t, []models.ScopeKind{models.ScopeKindAll}, d.Broadcasts.RecipientOptions)

	e, err := d.Catalog.Resolve(OpLogin)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com/estate/login", e.URL)
	assert.Equal(t, "POST", e.Method)
}
