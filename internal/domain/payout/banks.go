package payout

import "strings"

// bankDirectory maps human-readable bank names to gateway bank codes. The
// gateway rejects transfers without a known code, so unknown names fail before
// any outbound call.
var bankDirectory = map[string]string{
	"access bank":         "044",
	"citibank":            "023",
	"ecobank":             "050",
	"fidelity bank":       "070",
	"first bank":          "011",
	"fcmb":                "214",
	"globus bank":         "103",
	"gtbank":              "058",
	"heritage bank":       "030",
	"keystone bank":       "082",
	"kuda bank":           "50211",
	"polaris bank":        "076",
	"providus bank":       "101",
	"stanbic ibtc":        "221",
	"standard chartered":  "068",
	"sterling bank":       "232",
	"union bank":          "032",
	"united bank africa":  "033",
	"unity bank":          "215",
	"wema bank":           "035",
	"zenith bank":         "057",
}

// BankCode resolves a bank name to its gateway code, case-insensitively.
func BankCode(name string) (string, bool) {
	code, ok := bankDirectory[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// BankNames lists the supported directory entries, for surfacing in setup UIs.
func BankNames() []string {
	names := make([]string, 0, len(bankDirectory))
	for name := range bankDirectory {
		names = append(names, name)
	}
	return names
}
