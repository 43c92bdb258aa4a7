package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/log"
)

const (
	fileFormatVersion = 1
	pbkdf2Iterations  = 100000
	keyLength         = 32
	saltLength        = 16
)

// fileDocument is the on-disk layout of a File storage.
type fileDocument struct {
	Version   int               `json:"version"`
	Encrypted bool              `json:"encrypted"`
	Salt      string            `json:"salt,omitempty"`
	Values    map[string]string `json:"values"`
}

// File persists values as a JSON document with 0600 permissions.
//
// When a passphrase is supplied every value is sealed with AES-GCM under a
// key derived with PBKDF2. The document is re-read on every call so that
// several schoolctl processes sharing a profile observe each other's writes.
type File struct {
	mu         sync.Mutex
	path       string
	passphrase string
	logger     *log.Logger
}

// FileOption configures a File storage.
type FileOption func(*File)

// WithPassphrase enables value encryption.
func WithPassphrase(passphrase string) FileOption {
	return func(f *File) {
		f.passphrase = passphrase
	}
}

// WithFileLogger sets the logger used to report discarded data.
func WithFileLogger(logger *log.Logger) FileOption {
	return func(f *File) {
		f.logger = logger
	}
}

// NewFile creates a File storage at path. The file is created lazily.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{
		path:   path,
		logger: log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get retrieves a value by key. Values that cannot be decrypted are treated
// as absent.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}

	raw, ok := doc.Values[key]
	if !ok {
		return "", false, nil
	}
	if !doc.Encrypted {
		return raw, true, nil
	}

	masterKey, err := f.deriveKey(doc)
	if err != nil {
		return "", false, err
	}
	value, err := decrypt(masterKey, raw)
	if err != nil {
		f.logger.Warn("discarding undecryptable session value", "key", key, "path", f.path, "error", err.Error())
		return "", false, nil
	}
	return value, true, nil
}

// Set stores a value.
func (f *File) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}

	stored := value
	if f.passphrase != "" {
		if !doc.Encrypted {
			// An unencrypted document is upgraded in place: existing values are
			// dropped rather than re-used in plaintext.
			doc = newDocument(true)
		}
		masterKey, err := f.deriveKey(doc)
		if err != nil {
			return err
		}
		stored, err = encrypt(masterKey, value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeStorageCrypto, "failed to encrypt session value", err)
		}
	}

	doc.Values[key] = stored
	return f.save(doc)
}

// Remove deletes a value.
func (f *File) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Values[key]; !ok {
		return nil
	}
	delete(doc.Values, key)
	return f.save(doc)
}

// Clear deletes the backing file.
func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to remove session file", err)
	}
	return nil
}

func newDocument(encrypted bool) *fileDocument {
	doc := &fileDocument{
		Version:   fileFormatVersion,
		Encrypted: encrypted,
		Values:    make(map[string]string),
	}
	if encrypted {
		salt := make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err == nil {
			doc.Salt = base64.StdEncoding.EncodeToString(salt)
		}
	}
	return doc
}

// load reads the document. A missing file is an empty document; an
// unparseable file is discarded and reported as empty.
func (f *File) load() (*fileDocument, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newDocument(f.passphrase != ""), nil
		}
		return nil, errors.Wrap(errors.ErrCodeStorageRead, "failed to read session file", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil || doc.Values == nil {
		f.logger.Warn("discarding corrupted session file", "path", f.path)
		return newDocument(f.passphrase != ""), nil
	}
	if doc.Encrypted && f.passphrase == "" {
		return nil, errors.New(errors.ErrCodeStorageCrypto, "session file is encrypted but no passphrase is configured").
			WithSuggestion("Set SCHOOLCTL_STORAGE_PASSPHRASE or run 'schoolctl auth logout' to reset the session")
	}
	return &doc, nil
}

func (f *File) save(doc *fileDocument) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to create session directory", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to encode session file", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to write session file", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to replace session file", err)
	}
	return nil
}

func (f *File) deriveKey(doc *fileDocument) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil || len(salt) == 0 {
		return nil, errors.New(errors.ErrCodeStorageCorrupt, "session file has no valid salt")
	}
	return pbkdf2.Key([]byte(f.passphrase), salt, pbkdf2Iterations, keyLength, sha256.New), nil
}

// encrypt encrypts a value using AES-GCM
func encrypt(masterKey []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a value using AES-GCM
func decrypt(masterKey []byte, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
