// Package mailparse extracts the subject and plain-text body from a raw
// RFC 822 message for classification. Multipart messages contribute their
// text/plain parts; attachments are skipped.
package mailparse

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Parse decodes a raw message into its subject and plain-text body.
// It fails only when the message itself is not decodable as mail.
func Parse(data []byte) (subject string, body string, err error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse message: %w", err)
	}

	subject = decodeHeader(msg.Header.Get("Subject"))

	body, err = extractText(msg)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

// decodeHeader decodes RFC 2047 encoded words, falling back to the raw
// value when decoding fails
func decodeHeader(value string) string {
	decoder := mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractText returns the text content of a message. For multipart
// messages it concatenates the text/plain parts.
func extractText(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return readPart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	}

	boundary, ok := params["boundary"]
	if !ok {
		return readPart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	}

	mr := multipart.NewReader(msg.Body, boundary)
	var textContent bytes.Buffer

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Return whatever text was collected before the malformed part
			if textContent.Len() > 0 {
				return textContent.String(), nil
			}
			return "", fmt.Errorf("failed to read multipart body: %w", err)
		}

		partType, partParams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil || !strings.HasPrefix(partType, "text/plain") {
			continue
		}

		text, err := readPart(part, part.Header.Get("Content-Transfer-Encoding"), partParams["charset"])
		if err != nil {
			continue
		}
		textContent.WriteString(text)
		textContent.WriteString("\n")
	}

	return textContent.String(), nil
}

// readPart reads a body or body part, undoing its transfer encoding and
// converting legacy charsets to UTF-8
func readPart(r io.Reader, transferEncoding string, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	if decoded, err := charsetReader(charset, r); err == nil {
		r = decoded
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return string(raw), nil
}

// charsetReader converts the legacy charsets that still show up in mail
// traffic. Unknown charsets are passed through untouched.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "iso-8859-1", "latin1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "iso-8859-15":
		return transform.NewReader(input, charmap.ISO8859_15.NewDecoder()), nil
	case "windows-1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	default:
		return input, fmt.Errorf("unhandled charset %q", charset)
	}
}
