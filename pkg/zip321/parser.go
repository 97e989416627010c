// Package zip321 implements the ZIP 321 payment request URI format.
//
// A payment URI carries one or more recipients, each with an address and
// optionally an amount, memo, label, and message:
//
//	zcash:<address>?amount=<zec>&memo=<base64url>
//	zcash:?address.1=<addr1>&amount.1=<zec1>&address.2=<addr2>&amount.2=<zec2>
//
// Amounts are decimal ZEC with up to 8 fractional digits; memos are
// base64url without padding. See https://zips.z.cash/zip-0321.
package zip321

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/zclabs/zcash-pczt/pkg/request"
)

// ZatoshisPerZEC is the smallest-unit scale of a decimal ZEC amount.
const ZatoshisPerZEC = 100_000_000

// Payment is a single recipient within a payment request.
type Payment struct {
	Address string
	Amount  *uint64 // zatoshis; nil when the payer chooses
	Memo    []byte  // decoded memo bytes
	Label   string
	Message string
}

// PaymentRequest is a parsed ZIP 321 URI.
type PaymentRequest struct {
	Payments []Payment
}

// Parse decodes a ZIP 321 payment URI. The "zcash:" scheme prefix is
// optional.
func Parse(uri string) (*PaymentRequest, error) {
	uri = strings.TrimPrefix(uri, "zcash:")

	var baseAddress, query string
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		baseAddress, query = uri[:i], uri[i+1:]
	} else if strings.Contains(uri, "=") {
		query = uri
	} else {
		baseAddress = uri
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("malformed query: %w", err)
	}

	var payments []Payment
	if hasIndexedParams(params) {
		payments, err = parseIndexedPayments(params)
	} else {
		var p Payment
		p, err = parsePayment(baseAddress, params, -1)
		payments = []Payment{p}
	}
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 || (len(payments) == 1 && payments[0].Address == "") {
		return nil, fmt.Errorf("no payments in URI")
	}
	return &PaymentRequest{Payments: payments}, nil
}

// ToRequest converts the parsed URI into a transaction request. Every
// payment must carry an amount.
func (req *PaymentRequest) ToRequest() (*request.TransactionRequest, error) {
	payments := make([]request.Payment, 0, len(req.Payments))
	for i, p := range req.Payments {
		if p.Amount == nil {
			return nil, fmt.Errorf("payment %d has no amount", i)
		}
		payment, err := request.NewPayment(p.Address, *p.Amount, p.Memo)
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", i, err)
		}
		payment.Label = p.Label
		payment.Message = p.Message
		payments = append(payments, payment)
	}
	return request.NewTransactionRequest(payments), nil
}

// parsePayment reads one recipient's parameters. index -1 means the
// unindexed single-recipient form.
func parsePayment(baseAddress string, params url.Values, index int) (Payment, error) {
	get := func(name string) string {
		if index < 0 {
			return params.Get(name)
		}
		// Index 0 may be written without a suffix.
		if index == 0 {
			if v := params.Get(name); v != "" {
				return v
			}
		}
		return params.Get(fmt.Sprintf("%s.%d", name, index))
	}

	p := Payment{Address: baseAddress}
	if addr := get("address"); addr != "" {
		p.Address = addr
	}
	if p.Address == "" && index >= 0 {
		return p, fmt.Errorf("payment %d missing address", index)
	}

	if amountStr := get("amount"); amountStr != "" {
		zats, err := ParseAmount(amountStr)
		if err != nil {
			return p, fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		p.Amount = &zats
	}
	if memoStr := get("memo"); memoStr != "" {
		memo, err := base64.RawURLEncoding.DecodeString(memoStr)
		if err != nil {
			return p, fmt.Errorf("invalid memo encoding: %w", err)
		}
		p.Memo = memo
	}
	p.Label = get("label")
	p.Message = get("message")
	return p, nil
}

// parseIndexedPayments reads the multi-recipient form. Indices run from
// 0 to 9999 and gaps are rejected.
func parseIndexedPayments(params url.Values) ([]Payment, error) {
	maxIdx := -1
	seen := map[int]bool{}
	for key := range params {
		name, idx, ok := splitIndexedParam(key)
		if !ok {
			continue
		}
		if name == "address" {
			seen[idx] = true
			if idx > maxIdx {
				maxIdx = idx
			}
		}
	}
	if params.Get("address") != "" {
		seen[0] = true
		if maxIdx < 0 {
			maxIdx = 0
		}
	}

	payments := make([]Payment, 0, maxIdx+1)
	for i := 0; i <= maxIdx; i++ {
		if !seen[i] {
			return nil, fmt.Errorf("payment indices are not contiguous at %d", i)
		}
		p, err := parsePayment("", params, i)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func hasIndexedParams(params url.Values) bool {
	for key := range params {
		if _, _, ok := splitIndexedParam(key); ok {
			return true
		}
	}
	return false
}

// splitIndexedParam splits "name.N" into its parts. N must be 0..9999
// with no leading zeros beyond a bare "0".
func splitIndexedParam(key string) (string, int, bool) {
	i := strings.IndexByte(key, '.')
	if i < 0 {
		return "", 0, false
	}
	name, suffix := key[:i], key[i+1:]
	if suffix != "0" && strings.HasPrefix(suffix, "0") {
		return "", 0, false
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 0 || idx > 9999 {
		return "", 0, false
	}
	return name, idx, true
}

// ParseAmount converts a decimal ZEC string to zatoshis exactly; floats
// would lose precision near the 8th decimal place.
func ParseAmount(s string) (uint64, error) {
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if len(frac) > 8 {
		return 0, fmt.Errorf("more than 8 decimal places")
	}

	var zats uint64
	if whole != "" {
		n, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not a valid number")
		}
		if n > (1<<63)/ZatoshisPerZEC {
			return 0, fmt.Errorf("amount out of range")
		}
		zats = n * ZatoshisPerZEC
	}
	if frac != "" {
		n, err := strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not a valid number")
		}
		for i := len(frac); i < 8; i++ {
			n *= 10
		}
		zats += n
	}
	return zats, nil
}

// Encode renders the request back into URI form, the inverse of Parse.
func (req *PaymentRequest) Encode() string {
	if len(req.Payments) == 0 {
		return "zcash:"
	}
	if len(req.Payments) == 1 {
		return encodeSingle(req.Payments[0])
	}
	params := url.Values{}
	for i, p := range req.Payments {
		suffix := fmt.Sprintf(".%d", i)
		params.Add("address"+suffix, p.Address)
		addCommonParams(params, p, suffix)
	}
	return "zcash:?" + params.Encode()
}

func encodeSingle(p Payment) string {
	uri := "zcash:" + p.Address
	params := url.Values{}
	addCommonParams(params, p, "")
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	return uri
}

func addCommonParams(params url.Values, p Payment, suffix string) {
	if p.Amount != nil {
		params.Add("amount"+suffix, FormatAmount(*p.Amount))
	}
	if len(p.Memo) > 0 {
		params.Add("memo"+suffix, base64.RawURLEncoding.EncodeToString(p.Memo))
	}
	if p.Label != "" {
		params.Add("label"+suffix, p.Label)
	}
	if p.Message != "" {
		params.Add("message"+suffix, p.Message)
	}
}

// FormatAmount renders zatoshis as decimal ZEC without trailing zeros.
func FormatAmount(zats uint64) string {
	whole := zats / ZatoshisPerZEC
	frac := zats % ZatoshisPerZEC
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	s := fmt.Sprintf("%d.%08d", whole, frac)
	return strings.TrimRight(s, "0")
}
