// Package tokenstore persists the access token, refresh token and cached
// profile records of one logged-in client.
//
// Reads never fail: a backend that cannot be reached reports every key as
// absent, which the session layer treats as logged out.
package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
)

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"
	KeyTutorProfile = "tutor_profile"
	KeyTutorInfo    = "tutor_info"
)

// Keys lists every key ClearAll removes.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUserData, KeyTutorProfile, KeyTutorInfo}

type Store interface {
	Read(ctx context.Context, key string) (string, bool)
	Write(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	// DeleteIf removes key only while it still holds expected, and reports
	// whether it did.
	DeleteIf(ctx context.Context, key string, expected string) (bool, error)
	ClearAll(ctx context.Context) error
}

// Factory hands out stores scoped to one namespace, e.g. one browser session.
type Factory interface {
	Scoped(namespace string) Store
}

// ReadJSON decodes the value at key into out. It reports false when the key
// is absent or holds something that does not decode.
func ReadJSON(ctx context.Context, s Store, key string, out any) bool {
	raw, ok := s.Read(ctx, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		slog.Warn("discarding unreadable cached record", "key", key, "error", err)
		return false
	}
	return true
}

// WriteJSON stores value under key, or deletes the key when value is nil.
func WriteJSON(ctx context.Context, s Store, key string, value any) error {
	if isNil(value) {
		return s.Delete(ctx, key)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Write(ctx, key, string(data))
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
