package credential

import (
	"context"
	"encoding/json"

	"github.com/systmms/smcreds/pkg/lazy"
)

// String is an opaque secret text.
type String struct {
	base
	secret *Secret
}

// NewString creates a String credential over secret.
func NewString(m Meta, secret *Secret) *String {
	return &String{base: newBase(m, TypeString), secret: secret}
}

// Secret returns the secret text.
func (c *String) Secret(ctx context.Context) (string, error) {
	return readText(ctx, c.meta.ID, c.secret)
}

// Snapshot implements Credential.
func (c *String) Snapshot(ctx context.Context) (Credential, error) {
	s, err := lazy.Snapshot(ctx, c.secret)
	if err != nil {
		return nil, err
	}
	return &String{base: c.base, secret: s}, nil
}

// UsernamePassword pairs a username taken from a tag with a secret password.
type UsernamePassword struct {
	base
	username string
	password *Secret
}

// NewUsernamePassword creates a UsernamePassword credential.
func NewUsernamePassword(m Meta, username string, password *Secret) *UsernamePassword {
	return &UsernamePassword{base: newBase(m, TypeUsernamePassword), username: username, password: password}
}

// Username returns the username.
func (c *UsernamePassword) Username() string {
	return c.username
}

// Password returns the secret text.
func (c *UsernamePassword) Password(ctx context.Context) (string, error) {
	return readText(ctx, c.meta.ID, c.password)
}

// Snapshot implements Credential.
func (c *UsernamePassword) Snapshot(ctx context.Context) (Credential, error) {
	s, err := lazy.Snapshot(ctx, c.password)
	if err != nil {
		return nil, err
	}
	return &UsernamePassword{base: c.base, username: c.username, password: s}, nil
}

// JSONUsernamePassword reads both username and password from a JSON object
// payload with mandatory "username" and "password" string fields.
type JSONUsernamePassword struct {
	base
	secret *Secret
}

// NewJSONUsernamePassword creates a JSONUsernamePassword credential.
func NewJSONUsernamePassword(m Meta, secret *Secret) *JSONUsernamePassword {
	return &JSONUsernamePassword{base: newBase(m, TypeJSONUsernamePassword), secret: secret}
}

// Username returns the payload's username field.
func (c *JSONUsernamePassword) Username(ctx context.Context) (string, error) {
	return c.field(ctx, "username")
}

// Password returns the payload's password field.
func (c *JSONUsernamePassword) Password(ctx context.Context) (string, error) {
	return c.field(ctx, "password")
}

func (c *JSONUsernamePassword) field(ctx context.Context, name string) (string, error) {
	raw, err := readBytes(ctx, c.meta.ID, c.secret)
	if err != nil {
		return "", err
	}
	defer wipe(raw)

	// Decode errors are dropped: their messages quote payload bytes.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return "", &MalformedPayloadError{ID: c.meta.ID}
	}

	v, ok := fields[name]
	if !ok {
		return "", &MalformedPayloadError{ID: c.meta.ID, Field: name}
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", &MalformedPayloadError{ID: c.meta.ID, Field: name}
	}
	return s, nil
}

// Snapshot implements Credential. The payload is captured as-is; fields are
// still parsed on read.
func (c *JSONUsernamePassword) Snapshot(ctx context.Context) (Credential, error) {
	s, err := lazy.Snapshot(ctx, c.secret)
	if err != nil {
		return nil, err
	}
	return &JSONUsernamePassword{base: c.base, secret: s}, nil
}

// File is a named blob.
type File struct {
	base
	fileName string
	content  *Secret
}

// NewFile creates a File credential.
func NewFile(m Meta, fileName string, content *Secret) *File {
	return &File{base: newBase(m, TypeFile), fileName: fileName, content: content}
}

// FileName returns the file name consumers should write the content to.
func (c *File) FileName() string {
	return c.fileName
}

// Content returns a copy of the raw payload.
func (c *File) Content(ctx context.Context) ([]byte, error) {
	return readBytes(ctx, c.meta.ID, c.content)
}

// Snapshot implements Credential.
func (c *File) Snapshot(ctx context.Context) (Credential, error) {
	s, err := lazy.Snapshot(ctx, c.content)
	if err != nil {
		return nil, err
	}
	return &File{base: c.base, fileName: c.fileName, content: s}, nil
}
