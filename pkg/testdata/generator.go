// Package testdata generates realistic assets, members and failure reports
// for the seed command and for tests.
package testdata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/assetdesk/pkg/domain"
	"github.com/jordanlanch/assetdesk/pkg/models"
)

// DefaultPassword is the password given to generated members
const DefaultPassword = "password123"

// canonicalAssets is the equipment every seeded organization starts with
var canonicalAssets = []models.CreateAssetRequest{
	{Name: "MacBook Pro 14", SerialNumber: "SN-001", Type: "Laptop"},
	{Name: "Dell XPS 15", SerialNumber: "SN-002", Type: "Laptop"},
	{Name: "iPhone 15 Pro", SerialNumber: "SN-003", Type: "Phone"},
	{Name: "iPad Air", SerialNumber: "SN-004", Type: "Tablet"},
	{Name: `Monitor LG 27"`, SerialNumber: "SN-005", Type: "Monitor"},
}

// Models per asset type
var assetModels = map[string][]string{
	"Laptop":  {"MacBook Air 13", "ThinkPad X1 Carbon", "Dell Latitude 7440", "HP EliteBook 840", "Framework Laptop 13"},
	"Monitor": {"Dell UltraSharp 27", "LG UltraFine 5K", "Samsung Odyssey G7", "BenQ PD2705U"},
	"Phone":   {"iPhone 14", "Pixel 8", "Galaxy S23", "iPhone SE"},
	"Tablet":  {"iPad Pro 11", "Galaxy Tab S9", "Surface Go 3"},
	"Printer": {"HP LaserJet Pro M404", "Brother HL-L2350DW", "Epson EcoTank ET-4850"},
	"Network": {"UniFi U6 Access Point", "Meraki MX68", "Netgear GS308 Switch"},
}

// Typical failures per asset type
var failures = map[string][]string{
	"Laptop":  {"Battery drains in under an hour", "Keyboard keys stick", "Fan is very loud under light load", "Does not wake from sleep", "Trackpad stops responding"},
	"Monitor": {"Screen flickers when docked", "Dead pixels in the upper corner", "No signal over USB-C", "Backlight bleeding on the left edge"},
	"Phone":   {"Cracked screen", "Does not charge with the office cable", "Microphone muffled on calls", "Stuck in a boot loop"},
	"Tablet":  {"Touch input is offset", "Pencil does not pair", "Battery swollen"},
	"Printer": {"Paper jam in tray 2", "Prints faded pages", "Offline for everyone on the floor"},
	"Network": {"Drops clients every few minutes", "Firmware update failed", "Port 4 has no link light"},
}

var assetTypes = sortedKeys(assetModels)

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssetGeneratorConfig configures asset generation parameters
type AssetGeneratorConfig struct {
	Count         int
	SerialPrefix  string  // keeps serial numbers unique across organizations
	RepairChance  float64 // 0.0-1.0
	RetiredChance float64 // 0.0-1.0
}

// Generator produces fake records from a seeded faker.
// Two generators with the same non-zero seed produce the same records.
type Generator struct {
	faker *gofakeit.Faker
}

// New creates a generator. A zero seed picks a random one.
func New(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// CanonicalAssets returns the five canonical assets with serial numbers under prefix
func CanonicalAssets(prefix string) []models.CreateAssetRequest {
	out := make([]models.CreateAssetRequest, len(canonicalAssets))
	for i, a := range canonicalAssets {
		out[i] = a
		out[i].SerialNumber = serial(prefix, a.SerialNumber)
		out[i].Status = domain.AssetOperational
	}
	return out
}

func serial(prefix, s string) string {
	if prefix == "" {
		return s
	}
	return strings.ToUpper(prefix) + "-" + s
}

// Assets generates cfg.Count assets with distinct serial numbers
func (g *Generator) Assets(cfg AssetGeneratorConfig) []models.CreateAssetRequest {
	out := make([]models.CreateAssetRequest, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		kind := g.faker.RandomString(assetTypes)
		out = append(out, models.CreateAssetRequest{
			Name:         g.faker.RandomString(assetModels[kind]),
			SerialNumber: serial(cfg.SerialPrefix, fmt.Sprintf("GEN-%04d-%s", i+1, strings.ToUpper(g.faker.LetterN(3)))),
			Type:         kind,
			Status:       g.status(cfg),
		})
	}
	return out
}

func (g *Generator) status(cfg AssetGeneratorConfig) string {
	r := g.faker.Float64()
	switch {
	case r < cfg.RetiredChance:
		return domain.AssetRetired
	case r < cfg.RetiredChance+cfg.RepairChance:
		return domain.AssetRepair
	default:
		return domain.AssetOperational
	}
}

// Member returns an invitation for a fake person with an address at emailDomain
func (g *Generator) Member(emailDomain string) models.InviteRequest {
	first, last := g.faker.FirstName(), g.faker.LastName()
	local := strings.ToLower(first + "." + last + g.faker.Numerify("##"))
	local = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, local)

	return models.InviteRequest{
		Name:     first + " " + last,
		Email:    local + "@" + emailDomain,
		Password: DefaultPassword,
	}
}

// Failure returns a plausible failure report for an asset of assetType
func (g *Generator) Failure(assetType string) string {
	options, ok := failures[assetType]
	if !ok {
		return g.faker.Sentence(8)
	}
	return g.faker.RandomString(options)
}
