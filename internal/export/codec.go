// Package export implements ExportCodec: ZIP archive construction with a
// manifest, Markdown export, and validation of incoming archives.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

const manifestVersion = 1

// Manifest is the top-level manifest.json payload.
type Manifest struct {
	Version    int    `json:"version"`
	ExportedAt int64  `json:"exportedAt"`
	Stats      Stats  `json:"stats"`
	Scope      string `json:"scope"`
}

type Stats struct {
	Conversations int   `json:"conversations"`
	Messages      int   `json:"messages"`
	SizeBytes     int64 `json:"sizeBytes"`
}

// conversationFile is the per-conversation JSON shape: the Conversation
// record with its messages inlined, sorted by createdAt.
type conversationFile struct {
	model.Conversation
	Messages []model.Message `json:"messages"`
}

const maxArchiveSizeAdvisory = 50 * 1024 * 1024

// Codec builds and parses chat-central export archives.
type Codec struct {
	Now func() int64
}

func New(now func() int64) *Codec {
	return &Codec{Now: now}
}

func (c *Codec) now() int64 {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UnixMilli()
}

// Export builds a ZIP archive containing manifest.json and one
// conversations/<id>.json file per conversation with its messages
// inlined and sorted by createdAt.
func (c *Codec) Export(conversations []model.Conversation, msgsByConv map[string][]model.Message, scope string) ([]byte, Manifest, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	totalMessages := 0
	for _, conv := range conversations {
		msgs := append([]model.Message(nil), msgsByConv[conv.ID]...)
		model.SortByCreatedAt(msgs)
		totalMessages += len(msgs)

		entry := conversationFile{Conversation: conv, Messages: msgs}
		data, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return nil, Manifest{}, err
		}
		w, err := zw.Create(fmt.Sprintf("conversations/%s.json", conv.ID))
		if err != nil {
			return nil, Manifest{}, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, Manifest{}, err
		}
	}

	manifest := Manifest{
		Version:    manifestVersion,
		ExportedAt: c.now(),
		Scope:      scope,
		Stats: Stats{
			Conversations: len(conversations),
			Messages:      totalMessages,
		},
	}
	manifestData, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return nil, Manifest{}, err
	}
	w, err := zw.Create("manifest.json")
	if err != nil {
		return nil, Manifest{}, err
	}
	if _, err := w.Write(manifestData); err != nil {
		return nil, Manifest{}, err
	}

	if err := zw.Close(); err != nil {
		return nil, Manifest{}, err
	}

	manifest.Stats.SizeBytes = int64(buf.Len())
	return buf.Bytes(), manifest, nil
}

// ExportMarkdown builds an archive with one Markdown file per
// conversation instead of JSON: "# <title>" followed by alternating
// "## You"/"## Assistant" sections separated by horizontal rules.
func (c *Codec) ExportMarkdown(conversations []model.Conversation, msgsByConv map[string][]model.Message) ([]byte, Manifest, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	totalMessages := 0
	for _, conv := range conversations {
		msgs := append([]model.Message(nil), msgsByConv[conv.ID]...)
		model.SortByCreatedAt(msgs)
		totalMessages += len(msgs)

		var md strings.Builder
		fmt.Fprintf(&md, "# %s\n\n", conv.Title)
		for i, m := range msgs {
			if i > 0 {
				md.WriteString("\n---\n\n")
			}
			heading := "## Assistant"
			if m.Role == model.RoleUser {
				heading = "## You"
			}
			fmt.Fprintf(&md, "%s\n\n%s\n", heading, m.Content)
		}

		w, err := zw.Create(fmt.Sprintf("conversations/%s.md", conv.ID))
		if err != nil {
			return nil, Manifest{}, err
		}
		if _, err := w.Write([]byte(md.String())); err != nil {
			return nil, Manifest{}, err
		}
	}

	manifest := Manifest{
		Version:    manifestVersion,
		ExportedAt: c.now(),
		Scope:      "markdown",
		Stats: Stats{
			Conversations: len(conversations),
			Messages:      totalMessages,
		},
	}
	manifestData, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return nil, Manifest{}, err
	}
	w, err := zw.Create("manifest.json")
	if err != nil {
		return nil, Manifest{}, err
	}
	if _, err := w.Write(manifestData); err != nil {
		return nil, Manifest{}, err
	}
	if err := zw.Close(); err != nil {
		return nil, Manifest{}, err
	}

	manifest.Stats.SizeBytes = int64(buf.Len())
	return buf.Bytes(), manifest, nil
}

// ValidationReport summarizes the outcome of Validate.
type ValidationReport struct {
	Manifest Manifest
	Warnings []string
}

// Validate parses and checks an incoming archive: manifest must parse
// with version == 1; every conversation file must parse with
// id == platform_originalId. Exceeding the size advisory produces a
// non-fatal warning rather than failing.
func (c *Codec) Validate(archive []byte) (ValidationReport, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return ValidationReport{}, model.NewError(model.KindValidation, "archive is not a valid zip", err)
	}

	var manifest Manifest
	found := false
	for _, f := range zr.File {
		if f.Name == "manifest.json" {
			rc, err := f.Open()
			if err != nil {
				return ValidationReport{}, model.NewError(model.KindValidation, "cannot open manifest.json", err)
			}
			err = json.NewDecoder(rc).Decode(&manifest)
			rc.Close()
			if err != nil {
				return ValidationReport{}, model.NewError(model.KindValidation, "manifest.json does not parse", err)
			}
			found = true
			break
		}
	}
	if !found {
		return ValidationReport{}, model.NewError(model.KindValidation, "archive missing manifest.json", nil)
	}
	if manifest.Version != manifestVersion {
		return ValidationReport{}, model.NewError(model.KindValidation, fmt.Sprintf("unsupported manifest version %d", manifest.Version), nil)
	}

	var report ValidationReport
	report.Manifest = manifest

	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "conversations/") || !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ValidationReport{}, model.NewError(model.KindValidation, "cannot open "+f.Name, err)
		}
		var entry conversationFile
		err = json.NewDecoder(rc).Decode(&entry)
		rc.Close()
		if err != nil {
			return ValidationReport{}, model.NewError(model.KindValidation, "cannot parse "+f.Name, err)
		}
		if entry.ID == "" || entry.Platform == "" || entry.OriginalID == "" || !entry.ValidID() {
			return ValidationReport{}, model.NewError(model.KindValidation, "id mismatch in "+f.Name, nil)
		}
	}

	if int64(len(archive)) > maxArchiveSizeAdvisory {
		report.Warnings = append(report.Warnings, fmt.Sprintf("archive is %d bytes, above the %d byte advisory threshold", len(archive), maxArchiveSizeAdvisory))
	}

	return report, nil
}

// ReadConversations parses every conversations/*.json entry in archive,
// returning conversations with their messages, for use by ImportEngine.
func ReadConversations(archive []byte) ([]model.Conversation, map[string][]model.Message, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, nil, model.NewError(model.KindValidation, "archive is not a valid zip", err)
	}

	var convs []model.Conversation
	msgsByConv := make(map[string][]model.Message)

	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "conversations/") || !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil, model.NewError(model.KindValidation, "cannot open "+f.Name, err)
		}
		var entry conversationFile
		err = json.NewDecoder(rc).Decode(&entry)
		rc.Close()
		if err != nil {
			return nil, nil, model.NewError(model.KindValidation, "cannot parse "+f.Name, err)
		}
		convs = append(convs, entry.Conversation)
		msgsByConv[entry.ID] = entry.Messages
	}
	return convs, msgsByConv, nil
}

// Filename builds the stable archive name
// "chat-central-export-<platform|all>-<YYYYMMDD-HHMMSS>.zip".
func Filename(scope string, at time.Time) string {
	return fmt.Sprintf("chat-central-export-%s-%s.zip", scope, at.UTC().Format("20060102-150405"))
}
