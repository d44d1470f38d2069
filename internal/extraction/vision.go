package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// VisionBlock is one bulletin block as returned by the vision model
type VisionBlock struct {
	Topic      string   `json:"tema"`
	Audience   string   `json:"erintett"`
	Body       string   `json:"tartalom"`
	Deadline   *string  `json:"hatarido,omitempty"`
	Emoji      *string  `json:"emoji,omitempty"`
	Checkboxes []string `json:"checkboxes,omitempty"`
	Images     []string `json:"images,omitempty"`
}

// VisionLineItem is one manifest row as returned by the vision model
type VisionLineItem struct {
	ProductCode    FlexString `json:"cikkszam"`
	ProductName    string     `json:"cikk_megnevezes"`
	ManifestNumber FlexString `json:"bizonylat_szam"`
	ExpectedQty    FlexInt    `json:"elvi_keszlet"`
}

// FlexString accepts a JSON string or number. Models sometimes drop the quotes around codes.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

// FlexInt accepts a JSON number, a numeric string or null. Set is false for null or missing values.
type FlexInt struct {
	Value int
	Set   bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FlexInt{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		// "2 db" style values keep their leading number
		raw = leadingNumber.FindString(raw)
		if raw == "" {
			*f = FlexInt{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", string(data))
	}
	*f = FlexInt{Value: int(math.Round(v)), Set: true}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Value)), nil
}

// Usage reports model token consumption for one call
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another call's usage
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}
