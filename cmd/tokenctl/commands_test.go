package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskhub-api/internal/tokens"
)

func newTestLoader(t *testing.T) (serviceLoader, *tokens.Service) {
	t.Helper()
	keys, err := tokens.GenerateKeys()
	require.NoError(t, err)
	svc, err := tokens.New(keys)
	require.NoError(t, err)
	return func() (*tokens.Service, error) { return svc, nil }, svc
}

func execute(t *testing.T, load serviceLoader, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, load)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, nil, "keygen")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	sign, ok := strings.CutPrefix(lines[0], "TOKEN_SIGNING_KEY=")
	require.True(t, ok)
	enc, ok := strings.CutPrefix(lines[1], "TOKEN_ENCRYPTION_KEY=")
	require.True(t, ok)

	keys, err := tokens.ParseHexKeys(sign, enc)
	require.NoError(t, err)
	_, err = tokens.New(keys)
	assert.NoError(t, err)
	assert.NotEqual(t, sign, enc)
	_, err = hex.DecodeString(sign)
	assert.NoError(t, err)
}

func TestIssueVerificationThenInspect(t *testing.T) {
	load, _ := newTestLoader(t)

	out, err := execute(t, load, "issue", "verification", "--subject", "42", "--email", "a@x.com")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	out, err = execute(t, load, "inspect", token)
	require.NoError(t, err)

	var res inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Equal(t, "42", res.SubjectID)
	assert.Equal(t, "a@x.com", res.Email)
}

func TestIssueResetThenInspect(t *testing.T) {
	load, _ := newTestLoader(t)

	out, err := execute(t, load, "issue", "reset", "--subject", "42", "--email", "a@x.com")
	require.NoError(t, err)

	m := regexp.MustCompile(`(?m)^token: (\S+)\ncode:  (\d{6})$`).FindStringSubmatch(strings.TrimSpace(out))
	require.Len(t, m, 3, out)
	token, code := m[1], m[2]

	out, err = execute(t, load, "inspect", "--kind", "reset", "--code", code, token)
	require.NoError(t, err)
	var res inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Equal(t, code, res.OneTimeCode)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	out, err = execute(t, load, "inspect", "--kind", "reset", "--code", wrong, token)
	require.NoError(t, err)
	res = inspectOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Equal(t, tokens.ErrCodeMismatch.Error(), res.Reason)
}

func TestInspectReportsReason(t *testing.T) {
	load, svc := newTestLoader(t)

	token, err := svc.IssueVerificationToken("42", "a@x.com")
	require.NoError(t, err)

	out, err := execute(t, load, "inspect", "--kind", "reset", "--code", "123456", token)
	require.NoError(t, err)
	var res inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, tokens.ErrCrypto.Error())

	out, err = execute(t, load, "inspect", "garbage")
	require.NoError(t, err)
	res = inspectOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, res.Reason, tokens.ErrMalformedToken.Error())
}

func TestCommandErrors(t *testing.T) {
	load, _ := newTestLoader(t)

	_, err := execute(t, load, "inspect", "--kind", "bogus", "x")
	assert.ErrorContains(t, err, "unknown kind")

	_, err = execute(t, load, "issue", "verification", "--email", "a@x.com")
	assert.Error(t, err)

	_, err = execute(t, load, "inspect")
	assert.Error(t, err)
}
