// Package password provides named password managers. A manager encodes a
// clear-text password for storage and checks a candidate against an encoded
// value.
package password

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Manager names.
const (
	PlainText = "Plain Text"
	MD5       = "MD5"
	SHA1      = "SHA1"
	SSHA      = "SSHA"
	BCrypt    = "BCRYPT"

	// Default is used when a principal does not name a manager.
	Default = BCrypt
)

// ErrUnknownManager is returned by Lookup for an unregistered name.
var ErrUnknownManager = errors.New("unknown password manager")

// Manager encodes and checks passwords.
type Manager interface {
	Encode(password string) (string, error)
	Check(encoded, password string) bool
}

var (
	mu       sync.RWMutex
	managers = map[string]Manager{
		PlainText: plainText{},
		MD5:       saltedDigest{tag: "{MD5}", sum: md5Sum},
		SHA1:      saltedDigest{tag: "{SHA1}", sum: sha1Sum},
		SSHA:      ssha{},
		BCrypt:    NewBCrypt(bcrypt.DefaultCost),
	}
)

// Register installs m under name, replacing any existing manager.
func Register(name string, m Manager) {
	mu.Lock()
	defer mu.Unlock()
	managers[name] = m
}

// Lookup returns the manager registered under name. An empty name selects
// Default.
func Lookup(name string) (Manager, error) {
	if name == "" {
		name = Default
	}
	mu.RLock()
	defer mu.RUnlock()
	m, ok := managers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownManager, name)
	}
	return m, nil
}

// Names lists the registered manager names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(managers))
}

type plainText struct{}

func (plainText) Encode(password string) (string, error) { return password, nil }

func (plainText) Check(encoded, password string) bool {
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(password)) == 1
}

// BCryptManager stores bcrypt hashes tagged with {BCRYPT}.
type BCryptManager struct {
	cost int
}

const bcryptTag = "{BCRYPT}"

// NewBCrypt returns a bcrypt manager using cost for new hashes.
func NewBCrypt(cost int) *BCryptManager {
	return &BCryptManager{cost: cost}
}

func (m *BCryptManager) Encode(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return bcryptTag + string(hash), nil
}

func (m *BCryptManager) Check(encoded, password string) bool {
	hash, ok := strings.CutPrefix(encoded, bcryptTag)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

const saltLen = 4

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// ssha is a salted SHA-1: {SSHA}base64(sha1(password+salt)+salt).
type ssha struct{}

func (ssha) Encode(password string) (string, error) {
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	return "{SSHA}" + base64.StdEncoding.EncodeToString(append(sha1Sum(salt, []byte(password), true), salt...)), nil
}

func (ssha) Check(encoded, password string) bool {
	payload, ok := strings.CutPrefix(encoded, "{SSHA}")
	if !ok {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(payload); err != nil {
			return false
		}
	}
	if len(raw) <= sha1.Size {
		return false
	}
	digest, salt := raw[:sha1.Size], raw[sha1.Size:]
	return subtle.ConstantTimeCompare(digest, sha1Sum(salt, []byte(password), true)) == 1
}

// saltedDigest stores tag + hex(salt) + hex(sum(salt+password)).
type saltedDigest struct {
	tag string
	sum func(salt, password []byte, saltLast bool) []byte
}

func (d saltedDigest) Encode(password string) (string, error) {
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	return d.tag + hex.EncodeToString(salt) + hex.EncodeToString(d.sum(salt, []byte(password), false)), nil
}

func (d saltedDigest) Check(encoded, password string) bool {
	payload, ok := strings.CutPrefix(encoded, d.tag)
	if !ok {
		return false
	}
	raw, err := hex.DecodeString(payload)
	if err != nil || len(raw) <= saltLen {
		return false
	}
	salt, digest := raw[:saltLen], raw[saltLen:]
	return subtle.ConstantTimeCompare(digest, d.sum(salt, []byte(password), false)) == 1
}

func md5Sum(salt, password []byte, saltLast bool) []byte {
	h := md5.New()
	writeSalted(h, salt, password, saltLast)
	return h.Sum(nil)
}

func sha1Sum(salt, password []byte, saltLast bool) []byte {
	h := sha1.New()
	writeSalted(h, salt, password, saltLast)
	return h.Sum(nil)
}

func writeSalted(w io.Writer, salt, password []byte, saltLast bool) {
	if saltLast {
		w.Write(password)
		w.Write(salt)
		return
	}
	w.Write(salt)
	w.Write(password)
}
