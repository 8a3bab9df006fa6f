package event

import "time"

type PaymentRecordedEvent struct {
	LoanID      int64     `json:"loanId"`
	PaymentID   int64     `json:"paymentId"`
	Amount      float64   `json:"amount"`
	PaymentDate time.Time `json:"paymentDate"`
	PaidOff     bool      `json:"paidOff"`
	Timestamp   time.Time `json:"timestamp"`
}

type LoanPaidOffEvent struct {
	LoanID    int64     `json:"loanId"`
	UserID    int64     `json:"userId"`
	TotalPaid float64   `json:"totalPaid"`
	Timestamp time.Time `json:"timestamp"`
}
