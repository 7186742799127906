package dto

// CreateConnectionRequest is the request body for creating a bank
// connection and its EBICS subscriber.
type CreateConnectionRequest struct {
	Name string               `json:"name" binding:"required,min=1,max=100"`
	Type string               `json:"type" binding:"required,eq=ebics"`
	Data CreateConnectionData `json:"data" binding:"required"`
}

// CreateConnectionData carries the EBICS-specific fields needed to address
// and authenticate to the bank host.
type CreateConnectionData struct {
	EbicsURL  string `json:"ebicsURL" binding:"required,url"`
	HostID    string `json:"hostID" binding:"required,max=35"`
	PartnerID string `json:"partnerID" binding:"required,max=35"`
	UserID    string `json:"userID" binding:"required,max=35"`
	Dialect   string `json:"dialect,omitempty"` // "H004" (default) or "H005"
}

// ConnectionResponse describes a bank connection.
type ConnectionResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Dialect       string `json:"dialect"`
	KeysConfirmed bool   `json:"keysConfirmed"`
	CreatedAt     string `json:"createdAt"`
}

// ImportAccountRequest binds a discovered OfferedBankAccount to a new
// Nexus-side BankAccount.
type ImportAccountRequest struct {
	OfferedAccountID string `json:"offeredAccountId" binding:"required,uuid"`
	Label            string `json:"nexusBankAccountId" binding:"required,min=1,max=100"`
}

// OfferedAccountResponse describes one account the bank reports reachable
// via a connection but not yet imported.
type OfferedAccountResponse struct {
	ID                    string  `json:"id"`
	RemoteAccountID       string  `json:"remoteAccountId"`
	IBAN                  string  `json:"iban"`
	BIC                   string  `json:"bic"`
	HolderName            string  `json:"holderName"`
	ImportedBankAccountID *string `json:"importedBankAccountId,omitempty"`
}

// BankAccountResponse describes an imported Nexus bank account.
type BankAccountResponse struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	HolderName string `json:"holderName"`
	IBAN       string `json:"iban"`
	BIC        string `json:"bic"`
}

// CreateInitiationRequest is the request body for creating an outgoing
// payment initiation.
type CreateInitiationRequest struct {
	IBAN    string  `json:"iban" binding:"required,max=34"`
	BIC     *string `json:"bic,omitempty"`
	Name    string  `json:"name" binding:"required,min=1,max=140"`
	Amount  string  `json:"amount" binding:"required"`
	Subject string  `json:"subject" binding:"required,min=1,max=140"`
	UID     *string `json:"uid,omitempty" binding:"omitempty,max=100"`
}

// InitiationResponse describes a payment initiation.
type InitiationResponse struct {
	ID          string  `json:"id"`
	IBAN        string  `json:"iban"`
	BIC         string  `json:"bic,omitempty"`
	Name        string  `json:"name"`
	Amount      string  `json:"amount"`
	Subject     string  `json:"subject"`
	Submitted   bool    `json:"submitted"`
	SubmittedAt *string `json:"submittedAt,omitempty"`
	PreparedAt  string  `json:"preparedAt"`
	EndToEndID  string  `json:"endToEndId"`
}

// FetchTransactionsRequest is the request body for triggering an EBICS
// download-and-ingest cycle on a bank account.
type FetchTransactionsRequest struct {
	RangeType string `json:"rangeType" binding:"required,oneof=latest all since-last previous-days"`
	Level     string `json:"level" binding:"required,oneof=report statement notification all"`
	Number    *int   `json:"number,omitempty" binding:"omitempty,gt=0"`
}

// TransactionEntryResponse describes one ingested bank transaction entry.
type TransactionEntryResponse struct {
	ID                   string `json:"id"`
	TransactionID        string `json:"transactionId"`
	CreditDebitIndicator string `json:"creditDebitIndicator"`
	Currency             string `json:"currency"`
	Amount               string `json:"amount"`
	Status               string `json:"status"`
	BookingDate          string `json:"bookingDate"`
}

// TransactionListResponse wraps a page of ingested transaction entries.
type TransactionListResponse struct {
	Items []TransactionEntryResponse `json:"items"`
}

// CreateScheduleRequest registers a cron-scheduled fetch or submit task
// against a bank account.
type CreateScheduleRequest struct {
	Name     string         `json:"name" binding:"required,min=1,max=100"`
	CronSpec string         `json:"cronspec" binding:"required"`
	Type     string         `json:"type" binding:"required,oneof=fetch submit"`
	Params   map[string]any `json:"params,omitempty"`
}

// ScheduleResponse describes a registered scheduled task.
type ScheduleResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CronSpec string `json:"cronspec"`
	Type     string `json:"type"`
}
