package runtime

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

var (
	emailPattern        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneStripPattern   = regexp.MustCompile(`[\s\-\(\)\+]`)
	phonePattern        = regexp.MustCompile(`^\d{10,15}$`)
	urlPattern          = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)
	alphanumericPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	alphaPattern        = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// ruleParams is the decoded form of a rule's params. Unset bounds stay nil.
type ruleParams struct {
	Value   any      `mapstructure:"value"`
	Min     *float64 `mapstructure:"min"`
	Max     *float64 `mapstructure:"max"`
	Pattern string   `mapstructure:"pattern"`
	Format  string   `mapstructure:"format"`
	Values  []string `mapstructure:"values"`
	List    []string `mapstructure:"list"`
}

// InputValidator applies validation rules to raw user input.
type InputValidator struct {
	logger *slog.Logger
}

// NewInputValidator creates an InputValidator. A nil logger discards diagnostics.
func NewInputValidator(logger *slog.Logger) *InputValidator {
	if logger == nil {
		logger = discardLogger()
	}
	return &InputValidator{logger: logger}
}

// Validate runs rules in order and stops at the first failure, returning a
// *domain.UserInputError carrying the rule's message.
func (v *InputValidator) Validate(input string, rules []domain.ValidationRule) error {
	for _, rule := range rules {
		msg, ok := v.check(input, rule)
		if ok {
			continue
		}
		if rule.ErrorMessage != "" {
			msg = rule.ErrorMessage
		}
		return &domain.UserInputError{Rule: string(rule.Type), Message: msg}
	}
	return nil
}

// check returns the default failure message and whether input passed.
func (v *InputValidator) check(input string, rule domain.ValidationRule) (string, bool) {
	p, err := decodeParams(rule.Params)
	if err != nil {
		v.logger.Warn("invalid validation params", "rule", rule.Type, "error", err)
	}
	trimmed := strings.TrimSpace(input)
	length := float64(utf8.RuneCountInString(input))

	switch rule.Type {
	case domain.RuleRequired:
		return "This field is required.", trimmed != ""

	case domain.RuleMinLength:
		limit := firstOf(0, numeric(p.Value), p.Min)
		return fmt.Sprintf("Input must be at least %s characters.", num(limit)), length >= limit

	case domain.RuleMaxLength:
		limit := firstOf(1000, numeric(p.Value), p.Max)
		return fmt.Sprintf("Input must not exceed %s characters.", num(limit)), length <= limit

	case domain.RuleLength:
		lo := firstOf(0, p.Min)
		hi := firstOf(math.Inf(1), p.Max)
		return fmt.Sprintf("Input must be between %s and %s characters.", num(lo), num(hi)), length >= lo && length <= hi

	case domain.RuleEmail:
		return "Please enter a valid email address.", emailPattern.MatchString(trimmed)

	case domain.RulePhone:
		digits := phoneStripPattern.ReplaceAllString(input, "")
		return "Please enter a valid phone number.", phonePattern.MatchString(digits)

	case domain.RuleNumber:
		_, err := strconv.ParseFloat(trimmed, 64)
		return "Please enter a valid number.", err == nil

	case domain.RuleInteger:
		_, err := strconv.ParseInt(trimmed, 10, 64)
		return "Please enter a valid integer.", err == nil

	case domain.RuleRegex:
		pattern := p.Pattern
		if pattern == "" && p.Value != nil {
			pattern = domain.FromAny(p.Value).Text()
		}
		if pattern == "" {
			return "", true
		}
		re, err := regexp.Compile(`^(?:` + pattern + `)`)
		if err != nil {
			v.logger.Warn("invalid validation pattern", "pattern", pattern, "error", err)
			return "Input does not match the required format.", false
		}
		return "Input does not match the required format.", re.MatchString(input)

	case domain.RuleRange:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return "Please enter a valid number.", false
		}
		lo := firstOf(math.Inf(-1), p.Min)
		hi := firstOf(math.Inf(1), p.Max)
		return fmt.Sprintf("Value must be between %s and %s.", num(lo), num(hi)), f >= lo && f <= hi

	case domain.RuleURL:
		return "Please enter a valid URL.", urlPattern.MatchString(trimmed)

	case domain.RuleDate:
		format := p.Format
		if format == "" {
			format = "%Y-%m-%d"
		}
		_, err := time.Parse(strftimeLayout(format), trimmed)
		return fmt.Sprintf("Please enter a valid date in format %s.", format), err == nil

	case domain.RuleAlphanumeric:
		return "Input must contain only letters and numbers.", alphanumericPattern.MatchString(input)

	case domain.RuleAlpha:
		return "Input must contain only letters.", alphaPattern.MatchString(input)

	case domain.RuleInList:
		allowed := p.Values
		if len(allowed) == 0 {
			allowed = p.List
		}
		return fmt.Sprintf("Input must be one of: %s.", strings.Join(allowed, ", ")), contains(allowed, trimmed)

	case domain.RuleNotInList:
		forbidden := p.Values
		if len(forbidden) == 0 {
			forbidden = p.List
		}
		return "This value is not allowed.", !contains(forbidden, trimmed)

	default:
		v.logger.Warn("unknown validation type", "type", rule.Type)
		return "", true
	}
}

func decodeParams(params map[string]domain.Value) (ruleParams, error) {
	var p ruleParams
	if len(params) == 0 {
		return p, nil
	}
	raw := make(map[string]any, len(params))
	for k, v := range params {
		raw[k] = v.Any()
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	return p, dec.Decode(raw)
}

func numeric(x any) *float64 {
	if x == nil {
		return nil
	}
	f, ok := domain.FromAny(x).Numeric()
	if !ok {
		return nil
	}
	return &f
}

func firstOf(def float64, candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return def
}

func num(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	return domain.Number(f).Text()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

var strftimeDirectives = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'H': "15", 'I': "03",
	'M': "04", 'S': "05", 'p': "PM", 'b': "Jan", 'B': "January",
	'a': "Mon", 'A': "Monday", 'z': "-0700", 'Z': "MST", 'j': "002", '%': "%",
}

// strftimeLayout converts a strftime format into a time.Parse layout.
func strftimeLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			if layout, ok := strftimeDirectives[format[i+1]]; ok {
				b.WriteString(layout)
				i++
				continue
			}
		}
		b.WriteByte(format[i])
	}
	return b.String()
}
