package protocol

import (
	"errors"
	"fmt"
	"io"
)

const TokenLen = 3

// Token is one fixed-width ASCII command or acknowledgement.
type Token string

// Client commands.
const (
	TokenSyn   Token = "SYN"
	TokenData  Token = "DAT"
	TokenStart Token = "STA"
	TokenPoll  Token = "POL"
)

// Server replies. The handshake acks echo the command token.
const (
	TokenNotYet          Token = "NOT"
	TokenDone            Token = "DON"
	TokenIncorrectMethod Token = "INM"
	TokenIncorrectData   Token = "IND"
)

func (t Token) Valid() bool {
	return len(t) == TokenLen
}

// IsServerError reports whether t is one of the server's rejection tokens.
func (t Token) IsServerError() bool {
	return t == TokenIncorrectMethod || t == TokenIncorrectData
}

func WriteToken(w io.Writer, t Token) error {
	if !t.Valid() {
		return fmt.Errorf("protocol: invalid token %q", string(t))
	}
	_, err := io.WriteString(w, string(t))
	return err
}

// ReadToken blocks until exactly TokenLen bytes arrive.
func ReadToken(r io.Reader) (Token, error) {
	var buf [TokenLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return "", ErrShortAck
		}
		return "", err
	}
	return Token(buf[:]), nil
}
