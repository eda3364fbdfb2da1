package businessflow

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/amirphl/sms-receiver/models"
)

// RawContentField holds a body that could not be split into fields
const RawContentField = "raw_content"

// OutboundMessagePlaceholder is stored for outbound payloads without any content field
const OutboundMessagePlaceholder = "[no content]"

// Payload sources reported for logging
const (
	PayloadSourceJSON  = "json"
	PayloadSourceForm  = "form"
	PayloadSourceRaw   = "raw"
	PayloadSourceEmpty = "empty"
)

// NormalizedPayload is the canonical view of an arbitrary gateway request body
type NormalizedPayload struct {
	Fields     map[string]string
	Phone      string
	Message    string
	Structured bool
	Source     string
}

// fieldRule resolves one candidate field name into a value
type fieldRule struct {
	field   string
	extract func(value string) string
}

var (
	senderPhoneRules = []fieldRule{
		{field: "originator", extract: cleanPhone},
		{field: "from", extract: cleanPhone},
		{field: "sender", extract: cleanPhone},
		{field: "msisdn", extract: cleanPhone},
		{field: "phone", extract: cleanPhone},
	}

	// outbound records are keyed by the counterparty, so recipients come first
	recipientPhoneRules = append([]fieldRule{
		{field: "recipient", extract: cleanPhone},
		{field: "to", extract: cleanPhone},
		{field: "recipients", extract: firstRecipient},
	}, senderPhoneRules...)

	messageRules = []fieldRule{
		{field: "message", extract: strings.TrimSpace},
		{field: "text", extract: strings.TrimSpace},
		{field: "content", extract: strings.TrimSpace},
		{field: "body", extract: strings.TrimSpace},
		{field: RawContentField, extract: identity},
	}
)

// NormalizePayload extracts a canonical record view from a request body. It never
// fails: undecodable input degrades to best-effort fields and fallback values.
// form carries multipart values already decoded by the transport. Query parameters
// only fill fields the body did not provide.
func NormalizePayload(smsType models.SMSType, contentType string, body []byte, form, query url.Values) NormalizedPayload {
	payload := NormalizedPayload{Fields: map[string]string{}, Source: PayloadSourceEmpty}
	kind := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(kind, ';'); i >= 0 {
		kind = strings.TrimSpace(kind[:i])
	}

	switch {
	case isJSONContentType(kind):
		if fields, ok := parseJSONFields(body); ok {
			payload.Fields = fields
			payload.Structured = true
			payload.Source = PayloadSourceJSON
		} else if len(bytes.TrimSpace(body)) > 0 {
			payload.Fields = map[string]string{RawContentField: string(body)}
			payload.Source = PayloadSourceRaw
		}
	case kind == "" || kind == "application/x-www-form-urlencoded":
		if fields := parsePairs(string(body), isAmpersand); len(fields) > 0 {
			payload.Fields = fields
			payload.Structured = true
			payload.Source = PayloadSourceForm
		}
	case kind == "multipart/form-data":
		if fields := firstValues(form); len(fields) > 0 {
			payload.Fields = fields
			payload.Structured = true
			payload.Source = PayloadSourceForm
		} else if len(bytes.TrimSpace(body)) > 0 {
			// part headers would parse as bogus pairs
			payload.Fields = map[string]string{RawContentField: string(body)}
			payload.Source = PayloadSourceRaw
		}
	}

	if len(payload.Fields) == 0 {
		if fields := parsePairs(string(body), isPairSeparator); len(fields) > 0 {
			payload.Fields = fields
			payload.Source = PayloadSourceRaw
		} else if len(bytes.TrimSpace(body)) > 0 {
			payload.Fields = map[string]string{RawContentField: string(body)}
			payload.Source = PayloadSourceRaw
		}
	}

	for key, value := range firstValues(query) {
		if _, exists := payload.Fields[key]; !exists {
			payload.Fields[key] = value
		}
	}

	phoneRules := senderPhoneRules
	if smsType == models.SMSTypeOutbound {
		phoneRules = recipientPhoneRules
	}
	payload.Phone = resolve(payload.Fields, phoneRules)
	if payload.Phone == "" {
		payload.Phone = models.UnknownPhone
	}

	payload.Message = resolve(payload.Fields, messageRules)
	if payload.Message == "" {
		if smsType == models.SMSTypeOutbound {
			payload.Message = OutboundMessagePlaceholder
		} else {
			payload.Message = renderFields(payload.Fields)
		}
	}

	return payload
}

// resolve returns the first non-empty value produced by rules, in order
func resolve(fields map[string]string, rules []fieldRule) string {
	for _, rule := range rules {
		value, ok := lookup(fields, rule.field)
		if !ok {
			continue
		}
		if v := rule.extract(value); v != "" {
			return v
		}
	}
	return ""
}

// lookup matches a field name exactly first, then case-insensitively in sorted key order
func lookup(fields map[string]string, name string) (string, bool) {
	if v, ok := fields[name]; ok {
		return v, true
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return fields[k], true
		}
	}
	return "", false
}

func isJSONContentType(kind string) bool {
	return kind == "application/json" || strings.HasSuffix(kind, "+json")
}

// parseJSONFields decodes a single JSON object into flat string fields
func parseJSONFields(body []byte) (map[string]string, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}

	fields := make(map[string]string, len(doc))
	for k, v := range doc {
		fields[k] = stringify(v)
	}
	return fields, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// firstValues keeps the first value of every named entry
func firstValues(values url.Values) map[string]string {
	fields := make(map[string]string, len(values))
	for key, vs := range values {
		if key == "" || len(vs) == 0 {
			continue
		}
		fields[key] = vs[0]
	}
	return fields
}

func isAmpersand(r rune) bool { return r == '&' }

func isPairSeparator(r rune) bool { return r == '&' || r == '\n' || r == '\r' }

// parsePairs splits name=value pairs, decoding percent escapes and '+'. Segments
// without '=' are not fields. The first value of a repeated name wins.
func parsePairs(raw string, sep func(rune) bool) map[string]string {
	fields := map[string]string{}
	for _, segment := range strings.FieldsFunc(raw, sep) {
		name, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(decodeComponent(name))
		if name == "" {
			continue
		}
		if _, exists := fields[name]; exists {
			continue
		}
		fields[name] = decodeComponent(value)
	}
	return fields
}

func decodeComponent(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return decoded
}

// cleanPhone trims a phone value and restores a leading '+' that form decoding
// turned into a space
func cleanPhone(value string) string {
	if rest, ok := strings.CutPrefix(value, " "); ok && isDigits(rest) {
		return "+" + rest
	}
	return strings.TrimSpace(value)
}

// firstRecipient takes the first entry of a JSON array or comma separated list
func firstRecipient(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "[") {
		var list []any
		if err := json.Unmarshal([]byte(value), &list); err == nil {
			for _, item := range list {
				if phone := cleanPhone(stringify(item)); phone != "" {
					return phone
				}
			}
			return ""
		}
	}
	for _, item := range strings.Split(value, ",") {
		if phone := cleanPhone(item); phone != "" {
			return phone
		}
	}
	return ""
}

func identity(value string) string { return value }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// renderFields renders fields deterministically; encoding/json sorts map keys
func renderFields(fields map[string]string) string {
	b, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(b)
}
