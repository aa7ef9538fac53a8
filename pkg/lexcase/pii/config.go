package pii

import (
	"strings"
	"unicode/utf8"
)

// Config controls how each PII type is rendered after masking.
//
// A format is literal text with placeholders: {first}, {first3}, {last4},
// {username_first3} and {domain}. A literal '*' renders as MaskChar.
// An empty format replaces the whole value with MaskChar.
type Config struct {
	MaskChar          string `yaml:"mask_char" json:"mask_char"`
	IDNumberFormat    string `yaml:"id_number_format" json:"id_number_format"`
	NameFormat        string `yaml:"name_format" json:"name_format"`
	AddressFormat     string `yaml:"address_format" json:"address_format"`
	PhoneFormat       string `yaml:"phone_format" json:"phone_format"`
	EmailFormat       string `yaml:"email_format" json:"email_format"`
	BankAccountFormat string `yaml:"bank_account_format" json:"bank_account_format"`
	CustomFormat      string `yaml:"custom_format" json:"custom_format"`
}

// DefaultConfig returns the standard masking formats.
func DefaultConfig() Config {
	return Config{
		MaskChar:       "*",
		IDNumberFormat: "****{last4}",
		NameFormat:     "{first}**",
		AddressFormat:  "{first3}****",
		PhoneFormat:    "****{last4}",
		EmailFormat:    "{username_first3}***@{domain}",
	}
}

func (c Config) formatFor(t Type) string {
	switch t {
	case IDNumber:
		return c.IDNumberFormat
	case Name:
		return c.NameFormat
	case Address:
		return c.AddressFormat
	case Phone:
		return c.PhoneFormat
	case Email:
		return c.EmailFormat
	case BankAccount:
		return c.BankAccountFormat
	default:
		return c.CustomFormat
	}
}

// FullLength reports whether values of type t are replaced entirely.
func (c Config) FullLength(t Type) bool {
	return c.formatFor(t) == ""
}

func (c Config) maskChar() string {
	if c.MaskChar == "" {
		return "*"
	}
	return c.MaskChar
}

// MaskValue renders value according to the format configured for t.
func (c Config) MaskValue(t Type, value string) string {
	return renderMask(c.formatFor(t), value, c.maskChar())
}

func renderMask(format, value, maskChar string) string {
	if format == "" {
		return strings.Repeat(maskChar, utf8.RuneCountInString(value))
	}
	user, domain, isEmail := strings.Cut(value, "@")
	var b strings.Builder
	for i := 0; i < len(format); {
		switch format[i] {
		case '*':
			b.WriteString(maskChar)
			i++
			continue
		case '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				break
			}
			name := format[i+1 : i+end]
			switch name {
			case "first":
				b.WriteString(firstRunes(value, 1))
			case "first3":
				b.WriteString(firstRunes(value, 3))
			case "last4":
				b.WriteString(lastRunes(value, 4))
			case "username_first3":
				if !isEmail {
					return strings.Repeat(maskChar, utf8.RuneCountInString(value))
				}
				b.WriteString(firstRunes(user, 3))
			case "domain":
				if !isEmail {
					return strings.Repeat(maskChar, utf8.RuneCountInString(value))
				}
				b.WriteString(domain)
			default:
				b.WriteString(maskChar)
			}
			i += end + 1
			continue
		}
		_, w := utf8.DecodeRuneInString(format[i:])
		b.WriteString(format[i : i+w])
		i += w
	}
	return b.String()
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func lastRunes(s string, n int) string {
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	skip := count - n
	i := 0
	for pos := range s {
		if i == skip {
			return s[pos:]
		}
		i++
	}
	return s
}
