package monitoring

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructorsCarryCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"missing field", MissingField("pain_level_0"), ErrCodeMissingField},
		{"empty binary", EmptyBinary("photo_1"), ErrCodeEmptyBinary},
		{"invalid value", InvalidValue("age", "out of range"), ErrCodeInvalidValue},
		{"schema malformed", SchemaMalformed("not a list", nil), ErrCodeSchemaMalformed},
		{"schema empty", SchemaEmpty(), ErrCodeSchemaEmpty},
		{"network", NetworkFailure("doctor-config", stderrors.New("dial tcp")), ErrCodeNetwork},
		{"http", HTTPStatus("doctor-config", 500), ErrCodeHTTPStatus},
		{"invalid response", InvalidResponse("workflow-z", nil), ErrCodeInvalidResponse},
		{"invalid transition", InvalidTransition("registering", "cancel"), ErrCodeInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, Code(tc.err))
			wrapped := fmt.Errorf("outer: %w", tc.err)
			assert.Equal(t, tc.code, Code(wrapped))
		})
	}
}

func TestConstructorsDoNotMutateSentinels(t *testing.T) {
	_ = MissingField("a")
	_ = MissingField("b")
	assert.Empty(t, FieldID(ErrMissingField))
	assert.Equal(t, "b", FieldID(MissingField("b")))
}

func TestClassification(t *testing.T) {
	assert.True(t, IsValidation(EmptyBinary("x")))
	assert.False(t, IsValidation(SchemaEmpty()))
	assert.True(t, IsSubmission(HTTPStatus("x", 404)))
	assert.True(t, IsSchema(SchemaMalformed("x", nil)))
	assert.False(t, IsSubmission(stderrors.New("plain")))
	assert.Equal(t, "", Code(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Error: Received status code 500", UserMessage(HTTPStatus("doctor-config", 500)))
	assert.Equal(t, "Connection failed: dial tcp: refused", UserMessage(NetworkFailure("doctor-config", stderrors.New("dial tcp: refused"))))
	assert.Equal(t, "Please fill in pain_level_0", UserMessage(MissingField("pain_level_0")))
	assert.Equal(t, "plain", UserMessage(stderrors.New("plain")))
	assert.Equal(t, "", UserMessage(nil))
}

func TestStatusCodeMetadata(t *testing.T) {
	require.Equal(t, 503, StatusCode(HTTPStatus("workflow-z", 503)))
	require.Equal(t, 0, StatusCode(SchemaEmpty()))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Doctor ")
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, role)

	_, err = ParseRole("nurse")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidValue, Code(err))
}

type testMessage struct {
	err error
}

func (m *testMessage) Type() string    { return "test" }
func (m *testMessage) Validate() error { return m.err }

func TestValidateMessage(t *testing.T) {
	var nilMsg *testMessage
	require.Error(t, ValidateMessage(nilMsg))

	require.NoError(t, ValidateMessage(&testMessage{}))

	domain := MissingField("doctor_name")
	err := ValidateMessage(&testMessage{err: domain})
	assert.Equal(t, ErrCodeMissingField, Code(err))
	assert.Equal(t, "doctor_name", FieldID(err))

	err = ValidateMessage(&testMessage{err: stderrors.New("bad")})
	assert.Equal(t, ErrCodeInvalidValue, Code(err))
}

func TestMakePanicHandlerRecovers(t *testing.T) {
	var got string
	handler := MakePanicHandler(func(funcName string, err any, stack []byte, fields ...map[string]any) {
		got = FormatPanic(funcName, err, stack, fields...)
	})

	func() {
		defer handler("boom", map[string]any{"job": "purge"})
		panic("kaboom")
	}()

	assert.True(t, strings.Contains(got, "recovered from panic in boom"))
	assert.True(t, strings.Contains(got, "job: purge"))
	assert.True(t, strings.Contains(got, "kaboom"))
}
