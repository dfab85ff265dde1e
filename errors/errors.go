// Package errors provides coded errors shared by every package of the bot.
package errors

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeInvalidCategory       Code = "voice.category.invalid"
	CodeChannelCreationFailed Code = "voice.channel.create.failure"
	CodeChannelNotFound       Code = "voice.channel.not_found"
	CodePermissionEditFailed  Code = "voice.permission.edit.failure"
	CodePairConflict          Code = "voice.pair.conflict"
	CodeUpstreamFailure       Code = "voice.upstream.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeStoreReadFailure  Code = "store.read.failure"
	CodeStoreWriteFailure Code = "store.write.failure"

	CodeCLIInputInvalid        Code = "cli.input.invalid"
	CodeDiscordRequestFailure  Code = "discord.request.failure"
	CodeDiscordMemberNotFound  Code = "discord.member.not_found"
	CodeInteractionInvalidData Code = "discord.interaction.invalid_input"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldGuildID(value string) Attr {
	return Field("guild_id", value)
}

func FieldChannelID(value string) Attr {
	return Field("channel_id", value)
}

func FieldUserID(value string) Attr {
	return Field("user_id", value)
}

func FieldPair(value string) Attr {
	return Field("pair", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf returns the deepest code in the chain, or "" for plain errors.
// Wrapping an already coded error keeps the inner code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value"
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	parts := strings.Split(string(code), ".")
	return parts[len(parts)-1]
}

func flatten(fields []Attr) []any {
	if len(fields) == 0 {
		return nil
	}

	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}
