package mirror

import "github.com/lazylotto/tradescan/internal/domain"

// baseURLs maps each environment to its public mirror node endpoint.
var baseURLs = map[domain.Environment]string{
	domain.EnvMainnet:    "https://mainnet-public.mirrornode.hedera.com",
	domain.EnvTestnet:    "https://testnet.mirrornode.hedera.com",
	domain.EnvPreviewnet: "https://previewnet.mirrornode.hedera.com",
	domain.EnvLocal:      "http://localhost:5551",
}

// BaseURL returns the mirror endpoint for env. env must already be validated
// via domain.ParseEnvironment.
func BaseURL(env domain.Environment) string {
	return baseURLs[env]
}
