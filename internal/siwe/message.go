// Package siwe builds and parses EIP-4361 "Sign-In with Ethereum" messages.
package siwe

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	headerSuffix = " wants you to sign in with your Ethereum account:"
	timeLayout   = "2006-01-02T15:04:05.000Z07:00"

	// Version is the only message version defined by EIP-4361.
	Version = "1"
)

// ErrMalformedMessage is returned by Parse for text that is not a sign-in message.
var ErrMalformedMessage = errors.New("siwe: malformed message")

// Message holds the fields of a sign-in request.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string
}

// Validate checks the fields that must be present before signing.
func (m Message) Validate() error {
	switch {
	case m.Domain == "":
		return fmt.Errorf("%w: domain required", ErrMalformedMessage)
	case m.URI == "":
		return fmt.Errorf("%w: uri required", ErrMalformedMessage)
	case m.Version != Version:
		return fmt.Errorf("%w: unsupported version %q", ErrMalformedMessage, m.Version)
	case m.ChainID <= 0:
		return fmt.Errorf("%w: chain id required", ErrMalformedMessage)
	case m.Nonce == "":
		return fmt.Errorf("%w: nonce required", ErrMalformedMessage)
	case m.IssuedAt.IsZero():
		return fmt.Errorf("%w: issued-at required", ErrMalformedMessage)
	case strings.Contains(m.Statement, "\n"):
		return fmt.Errorf("%w: statement must be a single line", ErrMalformedMessage)
	}
	if !IsChecksummed(m.Address) {
		return ErrInvalidAddress
	}
	return nil
}

// String renders the message in the human-readable form wallets display and sign.
// Identical fields always render byte-identical text.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString(m.Domain)
	b.WriteString(headerSuffix)
	b.WriteString("\n")
	b.WriteString(m.Address)
	b.WriteString("\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", formatTime(m.IssuedAt))
	if m.ExpirationTime != nil {
		fmt.Fprintf(&b, "\nExpiration Time: %s", formatTime(*m.ExpirationTime))
	}
	if m.NotBefore != nil {
		fmt.Fprintf(&b, "\nNot Before: %s", formatTime(*m.NotBefore))
	}
	if m.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Parse reads a message produced by String. It is lenient about optional
// fields but requires the header, address, URI, version, chain id and nonce.
func Parse(text string) (Message, error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 4 || !strings.HasSuffix(lines[0], headerSuffix) {
		return Message{}, ErrMalformedMessage
	}
	m := Message{
		Domain:  strings.TrimSuffix(lines[0], headerSuffix),
		Address: lines[1],
	}

	i := 2
	if lines[i] != "" {
		return Message{}, ErrMalformedMessage
	}
	i++
	if i < len(lines) && lines[i] != "" && !strings.HasPrefix(lines[i], "URI: ") {
		m.Statement = lines[i]
		i++
	}
	for i < len(lines) && lines[i] == "" {
		i++
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			if line == "Resources:" {
				for i+1 < len(lines) && strings.HasPrefix(lines[i+1], "- ") {
					i++
					m.Resources = append(m.Resources, strings.TrimPrefix(lines[i], "- "))
				}
				continue
			}
			return Message{}, fmt.Errorf("%w: unexpected line %q", ErrMalformedMessage, line)
		}
		switch key {
		case "URI":
			m.URI = value
		case "Version":
			m.Version = value
		case "Chain ID":
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Message{}, fmt.Errorf("%w: chain id: %v", ErrMalformedMessage, err)
			}
			m.ChainID = id
		case "Nonce":
			m.Nonce = value
		case "Issued At":
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return Message{}, fmt.Errorf("%w: issued at: %v", ErrMalformedMessage, err)
			}
			m.IssuedAt = t
		case "Expiration Time":
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return Message{}, fmt.Errorf("%w: expiration time: %v", ErrMalformedMessage, err)
			}
			m.ExpirationTime = &t
		case "Not Before":
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return Message{}, fmt.Errorf("%w: not before: %v", ErrMalformedMessage, err)
			}
			m.NotBefore = &t
		case "Request ID":
			m.RequestID = value
		default:
			return Message{}, fmt.Errorf("%w: unknown field %q", ErrMalformedMessage, key)
		}
	}

	if m.URI == "" || m.Version == "" || m.ChainID == 0 || m.Nonce == "" {
		return Message{}, ErrMalformedMessage
	}
	return m, nil
}
