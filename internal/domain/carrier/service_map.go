package carrier

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Service Identity Table
// ---------------------------------------------------------------------------

// ServiceEntry describes one physically distinct service level, reachable
// through three independent keys: (network, directCode), brokerCode, and the
// canonical identity string. Identity is the only key callers should persist
// for deduplication; directCode/brokerCode spellings vary by vendor API
// version.
type ServiceEntry struct {
	Network       Network `json:"network"`
	DirectCode    string  `json:"direct_code"`
	BrokerCode    string  `json:"broker_code"`
	Identity      string  `json:"identity"`
	DisplayName   string  `json:"display_name"`
	Domestic      bool    `json:"domestic"`
	International bool    `json:"international"`
}

// directCodePrefix namespaces a vendor-native code so it cannot collide with
// a broker code, e.g. "ups-direct:03".
const directCodeSeparator = "-direct:"

// serviceTable is the static, compiled-in identity table. One row per
// physically distinct service level.
var serviceTable = []ServiceEntry{
	// UPS
	{NetworkUPS, "01", "ups_next_day_air", "ups:next_day_air", "UPS Next Day Air", true, false},
	{NetworkUPS, "02", "ups_2nd_day_air", "ups:2nd_day_air", "UPS 2nd Day Air", true, false},
	{NetworkUPS, "03", "ups_ground", "ups:ground", "UPS Ground", true, false},
	{NetworkUPS, "12", "ups_3_day_select", "ups:3_day_select", "UPS 3 Day Select", true, false},
	{NetworkUPS, "13", "ups_next_day_air_saver", "ups:next_day_air_saver", "UPS Next Day Air Saver", true, false},
	{NetworkUPS, "14", "ups_next_day_air_early_am", "ups:next_day_air_early", "UPS Next Day Air Early", true, false},
	{NetworkUPS, "59", "ups_2nd_day_air_am", "ups:2nd_day_air_am", "UPS 2nd Day Air A.M.", true, false},
	{NetworkUPS, "07", "ups_worldwide_express", "ups:worldwide_express", "UPS Worldwide Express", false, true},
	{NetworkUPS, "08", "ups_worldwide_expedited", "ups:worldwide_expedited", "UPS Worldwide Expedited", false, true},
	{NetworkUPS, "11", "ups_standard_international", "ups:standard", "UPS Standard", false, true},
	{NetworkUPS, "65", "ups_worldwide_saver", "ups:worldwide_saver", "UPS Worldwide Saver", false, true},

	// FedEx
	{NetworkFedEx, "FEDEX_GROUND", "fedex_ground", "fedex:ground", "FedEx Ground", true, false},
	{NetworkFedEx, "GROUND_HOME_DELIVERY", "fedex_home_delivery", "fedex:home_delivery", "FedEx Home Delivery", true, false},
	{NetworkFedEx, "FEDEX_2_DAY", "fedex_2day", "fedex:2day", "FedEx 2Day", true, false},
	{NetworkFedEx, "FEDEX_2_DAY_AM", "fedex_2day_am", "fedex:2day_am", "FedEx 2Day A.M.", true, false},
	{NetworkFedEx, "FEDEX_EXPRESS_SAVER", "fedex_express_saver", "fedex:express_saver", "FedEx Express Saver", true, false},
	{NetworkFedEx, "STANDARD_OVERNIGHT", "fedex_standard_overnight", "fedex:standard_overnight", "FedEx Standard Overnight", true, false},
	{NetworkFedEx, "PRIORITY_OVERNIGHT", "fedex_priority_overnight", "fedex:priority_overnight", "FedEx Priority Overnight", true, false},
	{NetworkFedEx, "FIRST_OVERNIGHT", "fedex_first_overnight", "fedex:first_overnight", "FedEx First Overnight", true, false},
	{NetworkFedEx, "INTERNATIONAL_ECONOMY", "fedex_international_economy", "fedex:international_economy", "FedEx International Economy", false, true},
	{NetworkFedEx, "INTERNATIONAL_PRIORITY", "fedex_international_priority", "fedex:international_priority", "FedEx International Priority", false, true},
}

type directKey struct {
	network Network
	code    string
}

var (
	byDirect   map[directKey]*ServiceEntry
	byBroker   map[string]*ServiceEntry
	byIdentity map[string]*ServiceEntry
)

func init() {
	byDirect = make(map[directKey]*ServiceEntry, len(serviceTable))
	byBroker = make(map[string]*ServiceEntry, len(serviceTable))
	byIdentity = make(map[string]*ServiceEntry, len(serviceTable))

	for i := range serviceTable {
		entry := &serviceTable[i]
		if _, dup := byIdentity[entry.Identity]; dup {
			panic(fmt.Sprintf("carrier: duplicate service identity %q", entry.Identity))
		}
		byDirect[directKey{entry.Network, entry.DirectCode}] = entry
		byBroker[entry.BrokerCode] = entry
		byIdentity[entry.Identity] = entry
	}
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

// DirectServiceCode returns the namespaced direct code for a vendor-native
// code, e.g. DirectServiceCode(NetworkUPS, "03") == "ups-direct:03".
func DirectServiceCode(network Network, rawCode string) string {
	return string(network) + directCodeSeparator + rawCode
}

// IsDirectServiceCode reports whether code is a namespaced direct code
func IsDirectServiceCode(code string) bool {
	_, _, ok := ParseServiceCode(code)
	return ok
}

// ParseServiceCode splits a namespaced direct code into its network and raw
// vendor code. Returns ok=false for broker codes and any other spelling.
func ParseServiceCode(code string) (Network, string, bool) {
	idx := strings.Index(code, directCodeSeparator)
	if idx <= 0 {
		return "", "", false
	}
	network := Network(code[:idx])
	raw := code[idx+len(directCodeSeparator):]
	if !network.IsValid() || raw == "" {
		return "", "", false
	}
	return network, raw, true
}

// DirectEquivalent resolves a broker service code to its direct-integration
// equivalent, or nil if the broker code has no direct mapping (e.g. carriers
// without a direct integration, such as USPS).
func DirectEquivalent(brokerCode string) *ServiceEntry {
	return byBroker[brokerCode]
}

// BrokerEquivalent resolves a vendor-native code to the broker's spelling
func BrokerEquivalent(network Network, directCode string) (string, bool) {
	entry, ok := byDirect[directKey{network, directCode}]
	if !ok {
		return "", false
	}
	return entry.BrokerCode, true
}

// LookupDirect returns the table row for a vendor-native code, or nil
func LookupDirect(network Network, directCode string) *ServiceEntry {
	return byDirect[directKey{network, directCode}]
}

// IdentityOf maps any service code spelling to its canonical identity.
// Accepts a broker code, a namespaced direct code, or an unrecognized code,
// which passes through as its own identity so rate shopping can still rank
// services this table does not know about.
func IdentityOf(code string) string {
	if network, raw, ok := ParseServiceCode(code); ok {
		if entry := byDirect[directKey{network, raw}]; entry != nil {
			return entry.Identity
		}
		return code
	}
	if entry := byBroker[code]; entry != nil {
		return entry.Identity
	}
	return code
}

// ServicesForNetwork returns the table rows for one network, in table order
func ServicesForNetwork(network Network) []ServiceEntry {
	var entries []ServiceEntry
	for _, entry := range serviceTable {
		if entry.Network == network {
			entries = append(entries, entry)
		}
	}
	return entries
}

// AllServices returns a copy of the full identity table
func AllServices() []ServiceEntry {
	entries := make([]ServiceEntry, len(serviceTable))
	copy(entries, serviceTable)
	return entries
}
