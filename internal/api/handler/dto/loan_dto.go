package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Stevencedor/EasyLoans/internal/domain/loan"
)

type CreateLoanRequest struct {
	UserID       int64    `json:"userId"`
	Amount       float64  `json:"amount"`
	Reason       string   `json:"reason"`
	InterestRate *float64 `json:"interestRate"`
	CreatedAt    string   `json:"createdAt"`
}

func (r *CreateLoanRequest) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("userId must be a positive number")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	if r.InterestRate != nil && *r.InterestRate < 0 {
		return fmt.Errorf("interestRate cannot be negative")
	}
	if r.CreatedAt != "" {
		if _, err := time.Parse(time.DateOnly, r.CreatedAt); err != nil {
			return fmt.Errorf("invalid createdAt format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

func (r *CreateLoanRequest) CreatedAtTime() time.Time {
	t, _ := time.Parse(time.DateOnly, r.CreatedAt)
	return t
}

type RecordPaymentRequest struct {
	Amount      string `json:"amount"`
	PaymentDate string `json:"paymentDate"`
}

func (r *RecordPaymentRequest) Validate() error {
	if r.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if _, err := decimal.NewFromString(r.Amount); err != nil {
		return fmt.Errorf("invalid payment amount: %w", err)
	}
	if r.PaymentDate != "" {
		if _, err := time.Parse(time.DateOnly, r.PaymentDate); err != nil {
			return fmt.Errorf("invalid paymentDate format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

func (r *RecordPaymentRequest) AmountValue() loan.Money {
	return loan.ParseAmountOrZero(r.Amount)
}

func (r *RecordPaymentRequest) PaymentDateTime() time.Time {
	t, _ := time.Parse(time.DateOnly, r.PaymentDate)
	return t
}

type LoanResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Amount          string    `json:"amount"`
	InterestRate    string    `json:"interestRate"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	IsRequest       bool      `json:"isRequest"`
	RequestApproved bool      `json:"requestApproved"`
	CreatedAt       string    `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type LedgerResponse struct {
	ElapsedMonths   int        `json:"elapsedMonths"`
	AccruedInterest string     `json:"accruedInterest"`
	TotalOwed       string     `json:"totalOwed"`
	TotalPaid       string     `json:"totalPaid"`
	Remaining       string     `json:"remaining"`
	LastPaymentDate *time.Time `json:"lastPaymentDate,omitempty"`
}

type LoanDetailResponse struct {
	LoanResponse
	BorrowerName string         `json:"borrowerName"`
	CodebtorID   *string        `json:"codebtorId,omitempty"`
	Ledger       LedgerResponse `json:"ledger"`
}

type PaymentResponse struct {
	ID          string `json:"id"`
	LoanID      string `json:"loanId"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"paymentDate"`
}

type PaymentPreviewResponse struct {
	MonthsUntilPayment     int    `json:"monthsUntilPayment"`
	InterestAtPayment      string `json:"interestAtPayment"`
	TotalWithInterest      string `json:"totalWithInterest"`
	TotalPreviousPayments  string `json:"totalPreviousPayments"`
	RemainingBeforePayment string `json:"remainingBeforePayment"`
	RemainingAfterPayment  string `json:"remainingAfterPayment"`
	WillBePaidOff          bool   `json:"willBePaidOff"`
}

type PaymentReceiptResponse struct {
	Payment PaymentResponse `json:"payment"`
	PaidOff bool            `json:"paidOff"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func formatMoney(m loan.Money) string {
	return decimal.NewFromFloat(m).StringFixed(2)
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	return LoanResponse{
		ID:              strconv.FormatInt(l.ID, 10),
		UserID:          strconv.FormatInt(l.UserID, 10),
		Amount:          formatMoney(l.Amount),
		InterestRate:    decimal.NewFromFloat(l.InterestRate).String(),
		Reason:          l.Reason,
		Status:          string(l.Status),
		IsRequest:       l.IsRequest,
		RequestApproved: l.RequestApproved,
		CreatedAt:       l.CreatedAt.Format(time.DateOnly),
		UpdatedAt:       l.UpdatedAt,
	}
}

func NewLedgerResponse(s *loan.Snapshot) LedgerResponse {
	return LedgerResponse{
		ElapsedMonths:   s.ElapsedMonths,
		AccruedInterest: formatMoney(s.AccruedInterest),
		TotalOwed:       formatMoney(s.TotalOwed),
		TotalPaid:       formatMoney(s.TotalPaid),
		Remaining:       formatMoney(s.Remaining),
		LastPaymentDate: s.LastPaymentDate,
	}
}

func NewLoanDetailResponse(d *loan.LoanDetail) LoanDetailResponse {
	var codebtorID *string
	if d.CodebtorID != nil {
		s := strconv.FormatInt(*d.CodebtorID, 10)
		codebtorID = &s
	}

	return LoanDetailResponse{
		LoanResponse: NewLoanResponse(&d.Loan),
		BorrowerName: d.BorrowerName,
		CodebtorID:   codebtorID,
		Ledger:       NewLedgerResponse(&d.Ledger),
	}
}

func NewPaymentResponse(p *loan.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          strconv.FormatInt(p.ID, 10),
		LoanID:      strconv.FormatInt(p.LoanID, 10),
		Amount:      formatMoney(p.Amount),
		PaymentDate: p.PaymentDate.Format(time.DateOnly),
	}
}

func NewPaymentPreviewResponse(p *loan.Preview) PaymentPreviewResponse {
	return PaymentPreviewResponse{
		MonthsUntilPayment:     p.MonthsUntilPayment,
		InterestAtPayment:      formatMoney(p.InterestAtPayment),
		TotalWithInterest:      formatMoney(p.TotalWithInterest),
		TotalPreviousPayments:  formatMoney(p.TotalPreviousPayments),
		RemainingBeforePayment: formatMoney(p.RemainingBeforePayment),
		RemainingAfterPayment:  formatMoney(p.RemainingAfterPayment),
		WillBePaidOff:          p.WillBePaidOff,
	}
}

func NewPaymentReceiptResponse(r *loan.PaymentReceipt) PaymentReceiptResponse {
	return PaymentReceiptResponse{
		Payment: NewPaymentResponse(&r.Payment),
		PaidOff: r.PaidOff,
	}
}
