package universe

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported asset classes
const (
	AssetClassStocks = "stocks"
	AssetClassFX     = "fx"
)

// Universe is a named list of instruments sharing one asset class.
type Universe struct {
	Name       string   `yaml:"name"`
	AssetClass string   `yaml:"asset_class"`
	Symbols    []string `yaml:"symbols"`
}

// Load reads a universe definition from a YAML file.
func Load(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading universe file: %w", err)
	}

	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parsing universe file %s: %w", path, err)
	}

	u.normalize()
	if err := u.Validate(); err != nil {
		return nil, err
	}

	return &u, nil
}

// normalize uppercases, deduplicates and sorts the symbol list.
func (u *Universe) normalize() {
	seen := make(map[string]bool, len(u.Symbols))
	out := u.Symbols[:0]
	for _, s := range u.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	u.Symbols = out
	u.AssetClass = strings.ToLower(strings.TrimSpace(u.AssetClass))
}

// Validate rejects universes the pipeline cannot use.
func (u *Universe) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("universe name is required")
	}
	if u.AssetClass != AssetClassStocks && u.AssetClass != AssetClassFX {
		return fmt.Errorf("unknown asset class %q, want %s or %s", u.AssetClass, AssetClassStocks, AssetClassFX)
	}
	if len(u.Symbols) == 0 {
		return fmt.Errorf("universe %s has no symbols", u.Name)
	}
	if u.AssetClass == AssetClassFX {
		for _, s := range u.Symbols {
			if len(s) != 6 {
				return fmt.Errorf("fx symbol %q is not a 6-letter pair", s)
			}
		}
	}
	return nil
}

// PolygonTicker maps a symbol to its Polygon REST ticker.
func (u *Universe) PolygonTicker(symbol string) string {
	if u.AssetClass == AssetClassFX {
		return "C:" + symbol
	}
	return symbol
}

// StreamTopic maps a symbol to its Polygon websocket aggregate channel.
func (u *Universe) StreamTopic(symbol string) string {
	if u.AssetClass == AssetClassFX {
		return "CA." + symbol[:3] + "/" + symbol[3:]
	}
	return "AM." + symbol
}

// StreamCluster names the Polygon websocket cluster for this asset class.
func (u *Universe) StreamCluster() string {
	if u.AssetClass == AssetClassFX {
		return "forex"
	}
	return "stocks"
}

// FXMajors returns the built-in FX pair universe.
func FXMajors() *Universe {
	u := &Universe{
		Name:       "fx-majors",
		AssetClass: AssetClassFX,
		Symbols: []string{
			"EURUSD", "USDJPY", "GBPUSD", "AUDUSD", "USDCHF", "USDCAD", "NZDUSD",
			"EURGBP", "EURJPY", "EURCHF", "EURAUD", "EURNZD", "EURCAD",
			"GBPJPY", "GBPCHF", "GBPAUD", "GBPCAD", "GBPNZD",
			"AUDJPY", "AUDNZD", "AUDCAD", "AUDCHF",
			"NZDJPY", "NZDCAD", "NZDCHF",
			"CADJPY", "CADCHF", "CHFJPY",
			"USDNOK", "USDSEK", "USDDKK", "USDZAR", "USDTRY", "USDMXN", "USDPLN", "USDHUF", "USDILS",
			"USDCNH", "USDHKD", "USDSGD", "USDKRW", "USDINR",
		},
	}
	u.normalize()
	return u
}
