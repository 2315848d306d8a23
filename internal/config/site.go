package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ItemType is the kind of value a site config item holds. Values are
// stored as text in the config table and parsed on load.
type ItemType string

const (
	TypeText      ItemType = "text"
	TypeMultiline ItemType = "multiline"
	TypeInteger   ItemType = "integer"
	TypeBoolean   ItemType = "boolean"
	TypeDate      ItemType = "date"
	TypeTime      ItemType = "time"
	TypeInterval  ItemType = "interval"
	TypeMoney     ItemType = "money"
)

// Item describes one recognised site config option.
type Item struct {
	Key         string
	Type        ItemType
	Default     string
	Description string
}

// EnvKey is the environment variable that overrides the item,
// e.g. "user:require_user_passwords" → SITE_USER_REQUIRE_USER_PASSWORDS.
func (i Item) EnvKey() string {
	return "SITE_" + strings.ToUpper(strings.NewReplacer(":", "_", "-", "_").Replace(i.Key))
}

const (
	KeySiteName               = "core:sitename"
	KeyTelephone              = "core:telephone"
	KeyAddress                = "core:address"
	KeyCurrency               = "core:currency"
	KeyPasswordCheckAfter     = "user:password_check_after"
	KeyRequireUserPasswords   = "user:require_user_passwords"
	KeyAllowPasswordOnlyLogin = "user:allow_password_only_login"
	KeyPullThruInterval       = "stock:pullthru_interval"
	KeyMaxTranslineItems      = "register:max_transline_items"
)

// Items is the fixed set of options the core recognises.
var Items = []Item{
	{KeySiteName, TypeText, "Tiny Pub", "Name of the premises"},
	{KeyTelephone, TypeText, "", "Telephone number of the premises"},
	{KeyAddress, TypeMultiline, "", "Address of the premises"},
	{KeyCurrency, TypeText, "£", "Currency symbol"},
	{KeyPasswordCheckAfter, TypeInterval, "", "Ask for the password again after a token login if the last successful login was longer ago than this; blank disables"},
	{KeyRequireUserPasswords, TypeBoolean, "no", "Users must set a password"},
	{KeyAllowPasswordOnlyLogin, TypeBoolean, "no", "Allow users to log in by entering only their password"},
	{KeyPullThruInterval, TypeInterval, "", "Offer a pull-through on a regular line when it has not been used for this long; blank disables"},
	{KeyMaxTranslineItems, TypeInteger, "50", "Largest number of items allowed on a single transaction line"},
}

// LookupItem returns the catalogue entry for key.
func LookupItem(key string) (Item, bool) {
	for _, i := range Items {
		if i.Key == key {
			return i, true
		}
	}
	return Item{}, false
}

// Site is the typed view of the config table.
type Site struct {
	SiteName               string
	Telephone              string
	Address                string
	Currency               string
	PasswordCheckAfter     *time.Duration
	RequireUserPasswords   bool
	AllowPasswordOnlyLogin bool
	PullThruInterval       *time.Duration
	MaxTranslineItems      int
}

// DefaultSite is the configuration of a freshly created database.
func DefaultSite() Site {
	s, _ := BuildSite(nil)
	return s
}

// BuildSite parses raw values keyed by item key; missing keys take the
// item default.
func BuildSite(values map[string]string) (Site, error) {
	get := func(key string) string {
		if v, ok := values[key]; ok {
			return v
		}
		item, _ := LookupItem(key)
		return item.Default
	}
	var s Site
	var err error
	s.SiteName = get(KeySiteName)
	s.Telephone = get(KeyTelephone)
	s.Address = get(KeyAddress)
	s.Currency = get(KeyCurrency)
	if s.PasswordCheckAfter, err = ParseInterval(get(KeyPasswordCheckAfter)); err != nil {
		return s, fmt.Errorf("%s: %w", KeyPasswordCheckAfter, err)
	}
	if s.RequireUserPasswords, err = ParseBool(get(KeyRequireUserPasswords)); err != nil {
		return s, fmt.Errorf("%s: %w", KeyRequireUserPasswords, err)
	}
	if s.AllowPasswordOnlyLogin, err = ParseBool(get(KeyAllowPasswordOnlyLogin)); err != nil {
		return s, fmt.Errorf("%s: %w", KeyAllowPasswordOnlyLogin, err)
	}
	if s.PullThruInterval, err = ParseInterval(get(KeyPullThruInterval)); err != nil {
		return s, fmt.Errorf("%s: %w", KeyPullThruInterval, err)
	}
	if s.MaxTranslineItems, err = strconv.Atoi(strings.TrimSpace(get(KeyMaxTranslineItems))); err != nil {
		return s, fmt.Errorf("%s: %w", KeyMaxTranslineItems, err)
	}
	return s, nil
}

// Validate checks that value parses as the item's type.
func (i Item) Validate(value string) error {
	var err error
	switch i.Type {
	case TypeInteger:
		_, err = strconv.Atoi(strings.TrimSpace(value))
	case TypeBoolean:
		_, err = ParseBool(value)
	case TypeDate:
		if strings.TrimSpace(value) != "" {
			_, err = time.Parse("2006-01-02", strings.TrimSpace(value))
		}
	case TypeTime:
		if strings.TrimSpace(value) != "" {
			_, err = time.Parse("15:04", strings.TrimSpace(value))
		}
	case TypeInterval:
		_, err = ParseInterval(value)
	case TypeMoney:
		if strings.TrimSpace(value) != "" {
			_, err = decimal.NewFromString(strings.TrimSpace(value))
		}
	}
	if err != nil {
		return fmt.Errorf("%q is not a valid %s", value, i.Type)
	}
	return nil
}

// ParseBool accepts the usual spellings of yes and no.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "t", "on", "1":
		return true, nil
	case "no", "n", "false", "f", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}

// ParseInterval parses a Go duration ("90m"), a clock-style interval
// ("01:30:00") or a number of days ("2 days"). Blank means unset.
func ParseInterval(v string) (*time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return &d, nil
	}
	if parts := strings.Split(v, ":"); len(parts) == 2 || len(parts) == 3 {
		var total time.Duration
		units := []time.Duration{time.Hour, time.Minute, time.Second}
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("not an interval: %q", v)
			}
			total += time.Duration(n) * units[i]
		}
		return &total, nil
	}
	if fields := strings.Fields(v); len(fields) == 2 && strings.HasPrefix(fields[1], "day") {
		n, err := strconv.Atoi(fields[0])
		if err == nil && n >= 0 {
			d := time.Duration(n) * 24 * time.Hour
			return &d, nil
		}
	}
	return nil, fmt.Errorf("not an interval: %q", v)
}
