package errs

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// One code per error class the gateway surfaces to clients. The Kind string is
// what goes on the wire in the `error` event payload.
const (
	AuthenticationErrCode = 1101
	AuthorizationErrCode  = 1102
	ValidationErrCode     = 1103
	NotFoundErrCode       = 1104
	PersistenceErrCode    = 1105

	ServerInternalErrCode = 1500
)

var (
	ErrAuthentication = NewCodeError(AuthenticationErrCode, "authentication failed")
	ErrAuthorization  = NewCodeError(AuthorizationErrCode, "not authorized")
	ErrValidation     = NewCodeError(ValidationErrCode, "invalid argument")
	ErrNotFound       = NewCodeError(NotFoundErrCode, "not found")
	ErrPersistence    = NewCodeError(PersistenceErrCode, "persistence failed")

	ErrInternal = NewCodeError(ServerInternalErrCode, "internal error")
)

var kindByCode = map[int]string{
	AuthenticationErrCode: "authentication",
	AuthorizationErrCode:  "authorization",
	ValidationErrCode:     "validation",
	NotFoundErrCode:       "not_found",
	PersistenceErrCode:    "persistence",
	ServerInternalErrCode: "internal",
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Kind is the wire-level error kind string for the `error` event.
func (e *CodeError) Kind() string {
	if k, ok := kindByCode[e.Code]; ok {
		return k
	}
	return "internal"
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

// WithDetail returns a copy carrying extra detail; the sentinel stays untouched.
func (e *CodeError) WithDetail(detail string) *CodeError {
	c := e.clone()
	if c.Detail == "" {
		c.Detail = detail
	} else {
		c.Detail += ", " + detail
	}
	return c
}

// WrapMsg attaches detail and a call stack in one go.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	return errors.WithStack(e.WithDetail(toString(msg, kv)))
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Code extracts the error code from any error in the chain; unclassified
// errors map to ServerInternalErrCode.
func Code(err error) int {
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ServerInternalErrCode
}

// Kind extracts the wire kind for an arbitrary error.
func Kind(err error) string {
	if k, ok := kindByCode[Code(err)]; ok {
		return k
	}
	return "internal"
}

// Msg is the client-facing message for an arbitrary error. Internal errors are
// not leaked verbatim.
func Msg(err error) string {
	var ce *CodeError
	if stderrors.As(err, &ce) {
		return ce.Msg
	}
	return "internal error"
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprintf(" %v=%v", kv[i], kv[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf(" %v", kv[i]))
		}
	}
	return sb.String()
}
