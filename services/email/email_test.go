package emailsvc

import (
	"bytes"
	"encoding/base64"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/roster/core"
)

func testConfig() *core.Config {
	conf := &core.Config{AppName: "Roster", TestMode: true}
	conf.SetDefaultFromEmail("Roster <noreply@roster.test>")
	return conf
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ClearSentMessages()
	svc := NewConsoleServiceMock(testConfig())

	withContent := &core.EmailMessage{
		To:      []mail.Address{{Name: "Minerva", Address: "minerva@hogwarts.edu"}},
		Subject: "hello",
		BodyStr: "plain body",
	}
	require.NoError(t, withContent.Attach(bytes.NewReader([]byte("email\n")), "errors.csv", "text/csv"))
	noRecipient := &core.EmailMessage{Subject: "lost", BodyStr: "nobody reads this"}
	empty := &core.EmailMessage{To: []mail.Address{{Address: "minerva@hogwarts.edu"}}}

	svc.SendMessages(withContent, noRecipient, empty)

	require.Len(t, SentMessages, 1)
	sent := SentMessages[0]
	assert.Equal(t, "hello", sent.Subject)
	assert.Equal(t, "plain body", sent.TextContent)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("email\n")), sent.Attachments[0].Content.String())

	ClearSentMessages()
	assert.Empty(t, SentMessages)
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testConfig(), nil)
	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Minerva", Address: "minerva@hogwarts.edu"}},
		Cc:          []mail.Address{{Address: "albus@hogwarts.edu"}},
		Subject:     "report",
		TextContent: "text",
	}
	require.NoError(t, msg.Attach(bytes.NewReader([]byte("email\n")), "errors.csv", "text/csv"))

	m := svc.prepare(msg)
	assert.Equal(t, "noreply@roster.test", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Roster] report", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].To, 1)
	assert.Len(t, m.Personalizations[0].CC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "errors.csv", m.Attachments[0].Filename)
}
