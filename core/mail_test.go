package core

import (
	"bytes"
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/roster/fs"
)

func TestParseTemplates(t *testing.T) {
	require.NoError(t, parseTemplates(appfs.FS, true))
	entry, ok := templates["import_report"]
	require.True(t, ok)
	assert.Contains(t, entry, ".txt")
	assert.Contains(t, entry, ".gohtml")
	assert.NotContains(t, templates, "_base")

	broken := fstest.MapFS{
		templatesDir + "/_base.txt": {Data: []byte(`{{template "content" .}}`)},
		templatesDir + "/bad.txt":   {Data: []byte(`{{define "content"}}{{.Data`)},
	}
	assert.Error(t, parseTemplates(broken, true))

	require.NoError(t, parseTemplates(appfs.FS, true))
}

func TestEmailMessage_Render(t *testing.T) {
	tmplContext.appName = "Roster"
	tmplContext.frontendBaseURL = "http://localhost:3000"
	require.NoError(t, parseTemplates(appfs.FS, true))

	data := struct {
		Recipient, Kind, Filename, Action, Status string
		Inserted, Updated, Deleted, Rejected      int
	}{"Albus Dumbledore", "parent", "parents.csv", "create", "partial", 3, 0, 0, 2}

	msg := &EmailMessage{
		To:           []mail.Address{{Name: "Albus Dumbledore", Address: "albus@hogwarts.edu"}},
		TemplateName: "import_report",
		TemplateData: data,
	}
	require.NoError(t, msg.Render())
	assert.True(t, msg.HasContent())
	assert.True(t, strings.HasPrefix(msg.TextContent, "Hello Albus Dumbledore,"))
	assert.Contains(t, msg.TextContent, `Your parent upload "parents.csv" (create) finished with status "partial".`)
	assert.Contains(t, msg.TextContent, "Rejected: 2")
	assert.Contains(t, msg.TextContent, "Roster")
	assert.Contains(t, msg.HTMLContent, "parents.csv")

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{BodyStr: "hello", TemplateName: "import_report"}
		require.NoError(t, msg.Render())
		assert.Equal(t, "hello", msg.TextContent)
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "welcome"}
		require.NoError(t, msg.Render())
		assert.False(t, msg.HasContent())
	})
}

func TestEmailMessage_Attach(t *testing.T) {
	msg := new(EmailMessage)
	assert.False(t, msg.HasAttachments())

	content := "\uFEFFemail\nharry@hogwarts.edu\n"
	require.NoError(t, msg.Attach(strings.NewReader(content), "students-errors.csv", "text/csv; charset=utf-8"))
	require.NoError(t, msg.Attach(bytes.NewReader([]byte("plain text")), "notes.txt"))
	require.Len(t, msg.Attachments, 2)

	at := msg.Attachments[0]
	assert.Equal(t, "students-errors.csv", at.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", at.ContentType)
	decoded, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Equal(t, content, string(decoded))

	assert.Equal(t, "text/plain; charset=utf-8", msg.Attachments[1].ContentType)
}
