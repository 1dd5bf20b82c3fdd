// Package settings holds the operator preferences shared across views.
// Every setter persists its own key before it returns.
package settings

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/quickpay/internal/domain/payment"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

// Storage keys.
const (
	KeyPaymentMode    = "qr-pay-payment-mode"
	KeyColumnView     = "qr-pay-column-view"
	KeyAccordion      = "qr-pay-accordion"
	KeyMessage        = "qr-pay-message"
	KeyBankingDetails = "qr-pay-banking-details"
)

// DefaultMessage is the payment message used until the operator sets one.
const DefaultMessage = "Thank you for your business!"

// ColumnView is the product grid layout.
type ColumnView string

// Grid layouts.
const (
	ColumnsTwo   ColumnView = "2-col"
	ColumnsThree ColumnView = "3-col"
)

// ErrInvalidValue is returned for unsupported preference values.
var ErrInvalidValue = errors.New("invalid setting value")

// Store reads and writes single preference keys.
type Store interface {
	// Get decodes the value stored under key into v and reports whether the
	// key was present.
	Get(ctx context.Context, key string, v any) (bool, error)
	Put(ctx context.Context, key string, v any) error
}

// State is the application-wide preference object. It is injected where
// needed instead of being held in package globals.
type State struct {
	store Store

	mu          sync.RWMutex
	paymentMode transaction.Method
	columnView  ColumnView
	accordion   []string
	message     string
	banking     payment.BankingDetails
}

// bankingRecord is the stored shape of the banking details.
type bankingRecord struct {
	AccountNumber string `json:"accountNumber"`
	RecipientName string `json:"recipientName"`
}

// Load reads all preferences, falling back to defaults for missing keys.
func Load(ctx context.Context, store Store) (*State, error) {
	s := &State{
		store:       store,
		paymentMode: transaction.MethodCash,
		columnView:  ColumnsThree,
		accordion:   []string{},
		message:     DefaultMessage,
	}

	var mode string
	if ok, err := store.Get(ctx, KeyPaymentMode, &mode); err != nil {
		return nil, errors.Wrap(err, "load payment mode")
	} else if ok {
		if m, err := transaction.ParseMethod(mode); err == nil {
			s.paymentMode = m
		}
	}

	var view string
	if ok, err := store.Get(ctx, KeyColumnView, &view); err != nil {
		return nil, errors.Wrap(err, "load column view")
	} else if ok && validColumnView(ColumnView(view)) {
		s.columnView = ColumnView(view)
	}

	if _, err := store.Get(ctx, KeyAccordion, &s.accordion); err != nil {
		return nil, errors.Wrap(err, "load accordion")
	}
	if s.accordion == nil {
		s.accordion = []string{}
	}

	if _, err := store.Get(ctx, KeyMessage, &s.message); err != nil {
		return nil, errors.Wrap(err, "load message")
	}

	var b bankingRecord
	if _, err := store.Get(ctx, KeyBankingDetails, &b); err != nil {
		return nil, errors.Wrap(err, "load banking details")
	}
	s.banking = payment.BankingDetails{AccountNumber: b.AccountNumber, RecipientName: b.RecipientName}

	return s, nil
}

func validColumnView(v ColumnView) bool {
	return v == ColumnsTwo || v == ColumnsThree
}

// PaymentMode returns the preselected checkout mode.
func (s *State) PaymentMode() transaction.Method {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paymentMode
}

// SetPaymentMode persists and applies the preselected checkout mode.
func (s *State) SetPaymentMode(ctx context.Context, m transaction.Method) error {
	if _, err := transaction.ParseMethod(string(m)); err != nil {
		return errors.Wrap(ErrInvalidValue, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(ctx, KeyPaymentMode, string(m)); err != nil {
		return errors.Wrap(err, "save payment mode")
	}
	s.paymentMode = m
	return nil
}

// ColumnView returns the product grid layout.
func (s *State) ColumnView() ColumnView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.columnView
}

// SetColumnView persists and applies the product grid layout.
func (s *State) SetColumnView(ctx context.Context, v ColumnView) error {
	if !validColumnView(v) {
		return errors.Wrapf(ErrInvalidValue, "column view %q", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(ctx, KeyColumnView, string(v)); err != nil {
		return errors.Wrap(err, "save column view")
	}
	s.columnView = v
	return nil
}

// AccordionOpen returns the ids of the expanded settings sections.
func (s *State) AccordionOpen() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.accordion...)
}

// SetAccordionOpen persists the ids of the expanded settings sections.
func (s *State) SetAccordionOpen(ctx context.Context, open []string) error {
	if open == nil {
		open = []string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(ctx, KeyAccordion, open); err != nil {
		return errors.Wrap(err, "save accordion")
	}
	s.accordion = append([]string{}, open...)
	return nil
}

// Message returns the payment message embedded in QR payloads.
func (s *State) Message() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

// SetMessage persists the payment message.
func (s *State) SetMessage(ctx context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(ctx, KeyMessage, msg); err != nil {
		return errors.Wrap(err, "save message")
	}
	s.message = msg
	return nil
}

// BankingDetails returns the account receiving QR payments.
func (s *State) BankingDetails() payment.BankingDetails {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.banking
}

// SetBankingDetails persists the account receiving QR payments.
func (s *State) SetBankingDetails(ctx context.Context, d payment.BankingDetails) error {
	d.AccountNumber = strings.TrimSpace(d.AccountNumber)
	d.RecipientName = strings.TrimSpace(d.RecipientName)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := bankingRecord{AccountNumber: d.AccountNumber, RecipientName: d.RecipientName}
	if err := s.store.Put(ctx, KeyBankingDetails, rec); err != nil {
		return errors.Wrap(err, "save banking details")
	}
	s.banking = d
	return nil
}
