package catalog

// Operation is a logical backend operation name.
type Operation string

const (
	OpLogin                   Operation = "login"
	OpListBroadcasts          Operation = "list-broadcasts"
	OpMarkBroadcastRead       Operation = "mark-broadcast-read"
	OpCreateBroadcast         Operation = "create-broadcast"
	OpListPhases              Operation = "list-phases"
	OpListBlocks              Operation = "list-blocks"
	OpListActiveShops         Operation = "list-active-shops"
	OpListConversations       Operation = "list-conversations"
	OpListInquiryResponses    Operation = "list-inquiry-responses"
	OpInitiatePayment         Operation = "initiate-payment"
	OpPaymentStatus           Operation = "payment-status"
	OpRecordPayment           Operation = "record-payment"
	OpPaymentHistory          Operation = "payment-history"
	OpListMeetings            Operation = "list-meetings"
	OpCreateMeeting           Operation = "create-meeting"
	OpListMembers             Operation = "list-members"
	OpLogAttendance           Operation = "log-attendance"
	OpListSupportRequests     Operation = "list-support-requests"
	OpCreateSupportRequest    Operation = "create-support-request"
	OpDonate                  Operation = "donate"
	OpGetProfile              Operation = "get-profile"
	OpUpdateProfile           Operation = "update-profile"
	OpListTableBankingSummary Operation = "list-table-banking-summary"
	OpTableBankingLoan        Operation = "table-banking-loan"
	OpTableBankingHistory     Operation = "table-banking-history"
	OpSubmitOpinion           Operation = "submit-opinion"
	OpListNotices             Operation = "list-notices"
	OpListVacantHouses        Operation = "list-vacant-houses"
	OpSendChatMessage         Operation = "send-chat-message"
	OpGetChatHistory          Operation = "get-chat-history"
	OpListAdminConversations  Operation = "list-admin-chat-conversations"
	OpSendChatReply           Operation = "send-chat-reply"
)

// Kind separates side-effecting operations from reads. Only reads may be
// re-issued by a caller.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
)

func (k Kind) String() string {
	if k == KindWrite {
		return "write"
	}
	return "read"
}

var operationKinds = map[Operation]Kind{
	OpLogin:                   KindWrite,
	OpListBroadcasts:          KindRead,
	OpMarkBroadcastRead:       KindWrite,
	OpCreateBroadcast:         KindWrite,
	OpListPhases:              KindRead,
	OpListBlocks:              KindRead,
	OpListActiveShops:         KindRead,
	OpListConversations:       KindRead,
	OpListInquiryResponses:    KindRead,
	OpInitiatePayment:         KindWrite,
	OpPaymentStatus:           KindRead,
	OpRecordPayment:           KindWrite,
	OpPaymentHistory:          KindRead,
	OpListMeetings:            KindRead,
	OpCreateMeeting:           KindWrite,
	OpListMembers:             KindRead,
	OpLogAttendance:           KindWrite,
	OpListSupportRequests:     KindRead,
	OpCreateSupportRequest:    KindWrite,
	OpDonate:                  KindWrite,
	OpGetProfile:              KindRead,
	OpUpdateProfile:           KindWrite,
	OpListTableBankingSummary: KindRead,
	OpTableBankingLoan:        KindWrite,
	OpTableBankingHistory:     KindRead,
	OpSubmitOpinion:           KindWrite,
	OpListNotices:             KindRead,
	OpListVacantHouses:        KindRead,
	OpSendChatMessage:         KindWrite,
	OpGetChatHistory:          KindRead,
	OpListAdminConversations:  KindRead,
	OpSendChatReply:           KindWrite,
}

// Known reports whether op is one of the portal's logical operations.
func (op Operation) Known() bool {
	_, ok := operationKinds[op]
	return ok
}

// Kind returns the read/write classification. Unknown operations are treated
// as writes so nothing ever re-issues them.
func (op Operation) Kind() Kind {
	if k, ok := operationKinds[op]; ok {
		return k
	}
	return KindWrite
}

// DefaultMethod is POST for writes and GET for reads.
func (op Operation) DefaultMethod() string {
	if op.Kind() == KindWrite {
		return "POST"
	}
	return "GET"
}
