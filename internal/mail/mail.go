package mail

import (
	"context"
	"errors"
	"strings"
)

var ErrNoRecipient = errors.New("mail: recipient address is empty")

type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Address is the From identity shared by every transport.
type Address struct {
	Email string
	Name  string
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	return nil
}
