package devicecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/manana-app/manana/internal/pkg/cache"
	"github.com/manana-app/manana/internal/pkg/entitlements"
)

// Device state lives in Redis keyed by the device cookie. The field names
// mirror what the web client keeps locally (manana_pro_status,
// manana_total_generations, manana_user_email, manana_favorites) so both
// sides stay easy to line up during debugging.
const (
	fieldProStatus   = "manana_pro_status"
	fieldGenerations = "manana_total_generations"
	fieldUserEmail   = "manana_user_email"
	fieldFavorites   = "manana_favorites"

	stateTTL = 180 * 24 * time.Hour
)

func key(deviceID, field string) string {
	return fmt.Sprintf("device:%s:%s", deviceID, field)
}

// Favorite is an anonymous saved lesson. It only exists in the device cache;
// signed-in users keep lessons in the database instead.
type Favorite struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Grade     string    `json:"grade"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Load reads the device entitlement snapshot. Missing keys come back as zero
// values, so a fresh device starts anonymous with zero generations.
func Load(deviceID string) entitlements.DeviceState {
	var st entitlements.DeviceState
	if deviceID == "" {
		return st
	}

	if v, err := cache.Get(key(deviceID, fieldProStatus)); err == nil {
		st.IsPro = v == "true"
	}
	if v, err := cache.GetInt(key(deviceID, fieldGenerations)); err == nil {
		st.TotalGenerations = v
	}
	if v, err := cache.Get(key(deviceID, fieldUserEmail)); err == nil {
		st.Email = v
	}

	return st
}

// Mirror writes reconciled session state back to the device cache.
type Mirror struct{}

func NewMirror() *Mirror {
	return &Mirror{}
}

// Save implements entitlements.DeviceMirror.
func (m *Mirror) Save(deviceID string, st entitlements.SessionState) error {
	if deviceID == "" {
		return nil
	}

	if err := cache.Set(key(deviceID, fieldProStatus), strconv.FormatBool(st.IsPro), stateTTL); err != nil {
		return err
	}
	if err := cache.Set(key(deviceID, fieldGenerations), strconv.Itoa(st.TotalGenerations), stateTTL); err != nil {
		return err
	}

	return cache.Set(key(deviceID, fieldUserEmail), st.Email, stateTTL)
}

// IncrementGenerations bumps the device counter atomically and returns the
// new total.
func IncrementGenerations(deviceID string) (int, error) {
	client := cache.GetClient()

	k := key(deviceID, fieldGenerations)
	n, err := client.Incr(context.Background(), k).Result()
	if err != nil {
		return 0, err
	}
	client.Expire(context.Background(), k, stateTTL)

	return int(n), nil
}

// GetFavorites returns the anonymous favorites list for a device.
func GetFavorites(deviceID string) ([]Favorite, error) {
	raw, err := cache.Get(key(deviceID, fieldFavorites))
	if err != nil || raw == "" {
		return []Favorite{}, nil
	}

	var favs []Favorite
	if err := json.Unmarshal([]byte(raw), &favs); err != nil {
		return []Favorite{}, nil
	}

	return favs, nil
}

// SaveFavorites overwrites the anonymous favorites list. The caller enforces
// the free-tier cap before adding.
func SaveFavorites(deviceID string, favs []Favorite) error {
	data, err := json.Marshal(favs)
	if err != nil {
		return err
	}

	return cache.Set(key(deviceID, fieldFavorites), string(data), stateTTL)
}

// Clear removes everything cached for a device.
func Clear(deviceID string) {
	for _, f := range []string{fieldProStatus, fieldGenerations, fieldUserEmail, fieldFavorites} {
		cache.Delete(key(deviceID, f))
	}
}
