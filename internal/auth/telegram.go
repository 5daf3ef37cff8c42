package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidInitData is returned when init data is malformed or its
	// signature does not verify
	ErrInvalidInitData = errors.New("invalid telegram init data")
	// ErrExpiredInitData is returned when init data is too old to trust
	ErrExpiredInitData = errors.New("telegram init data expired")
)

// initDataMaxAge bounds how long a signed init data payload stays valid
const initDataMaxAge = 24 * time.Hour

// TelegramUser is the user block embedded in Mini App init data
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// VerifyInitData checks the HMAC signature Telegram attaches to Mini App
// init data and returns the embedded user. Secret derivation follows the
// Mini Apps scheme: secret = HMAC_SHA256(key="WebAppData", msg=botToken).
func VerifyInitData(initData, botToken string) (*TelegramUser, error) {
	if botToken == "" {
		return nil, errors.New("telegram bot token is not configured")
	}
	if initData == "" {
		return nil, ErrInvalidInitData
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInvalidInitData
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	dataCheckString := strings.Join(pairs, "\n")

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	expected := hex.EncodeToString(hmacSHA256(secret, []byte(dataCheckString)))
	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, ErrInvalidInitData
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		ts, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil || time.Since(time.Unix(ts, 0)) > initDataMaxAge {
			return nil, ErrExpiredInitData
		}
	}

	var user TelegramUser
	if raw := values.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, ErrInvalidInitData
		}
	}

	return &user, nil
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}
