package workflow

import (
	"context"
	"fmt"

	"github.com/rpattn/contentcore/internal/domain"
)

// EmailSender delivers workflow email notifications. Failures are caught and
// logged by the engine, never propagated to the triggering write.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers workflow SMS notifications.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Action is one pluggable workflow action type. Parameters arrive with
// template variables already resolved against the triggering content.
type Action interface {
	Type() string
	Execute(ctx context.Context, params map[string]string, content domain.ContentDocument) error
}

// Registry resolves action types declared by workflow definitions. It is
// populated at startup; a definition referencing an unregistered type is a
// configuration error reported in the execution log, not a silent no-op.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates a registry holding the given actions.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, action := range actions {
		if err := r.Register(action); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an action type to the registry.
func (r *Registry) Register(action Action) error {
	name := action.Type()
	if name == "" {
		return fmt.Errorf("action type must not be empty")
	}
	if _, exists := r.actions[name]; exists {
		return fmt.Errorf("action type %q already registered", name)
	}
	r.actions[name] = action
	return nil
}

// Resolve returns the action registered under the given type.
func (r *Registry) Resolve(actionType string) (Action, error) {
	action, ok := r.actions[actionType]
	if !ok {
		return nil, fmt.Errorf("unknown action type %q", actionType)
	}
	return action, nil
}

const (
	// ActionTypeEmail is the built-in email notification action.
	ActionTypeEmail = "Email"
	// ActionTypeSMS is the built-in SMS notification action.
	ActionTypeSMS = "SMS"
)

// EmailAction sends an email built from the To, Subject and Body parameters.
type EmailAction struct {
	sender EmailSender
}

// NewEmailAction creates the built-in email action.
func NewEmailAction(sender EmailSender) *EmailAction {
	return &EmailAction{sender: sender}
}

func (a *EmailAction) Type() string { return ActionTypeEmail }

func (a *EmailAction) Execute(ctx context.Context, params map[string]string, content domain.ContentDocument) error {
	to := params["To"]
	if to == "" {
		return fmt.Errorf("email action requires a To parameter")
	}
	return a.sender.SendEmail(ctx, to, params["Subject"], params["Body"])
}

// SMSAction sends a text message built from the To and Message parameters.
type SMSAction struct {
	sender SMSSender
}

// NewSMSAction creates the built-in SMS action.
func NewSMSAction(sender SMSSender) *SMSAction {
	return &SMSAction{sender: sender}
}

func (a *SMSAction) Type() string { return ActionTypeSMS }

func (a *SMSAction) Execute(ctx context.Context, params map[string]string, content domain.ContentDocument) error {
	to := params["To"]
	if to == "" {
		return fmt.Errorf("sms action requires a To parameter")
	}
	return a.sender.SendSMS(ctx, to, params["Message"])
}
