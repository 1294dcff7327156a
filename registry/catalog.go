package registry

import (
	"math/big"

	"dataforge-hub/wallet"
)

func usdfc(whole string) *big.Int {
	v, _ := wallet.ParseUnits(whole, PriceDecimals)
	return v
}

// Featured returns the curated datasets shown before any on-chain lookup.
func Featured() []Dataset {
	return []Dataset{
		{
			ID:          big.NewInt(1),
			Name:        "Cultural Diversity ImageNet",
			Description: "Curated image dataset with balanced representation across cultures, verified through PDP proofs",
			CID:         "bafybeihkoviema7g3gxyt6la7b7kbbdvguvzd4mrvm4gggqwdgxo2ckgju",
			Price:       usdfc("10"),
			Verified:    true,
		},
		{
			ID:          big.NewInt(2),
			Name:        "Synthetic Speech Corpus",
			Description: "Multi-language speech synthesis training data with bias auditing reports",
			CID:         "bafybeidyz7vgfnhxnqg5g3ujtzotadrr2m75s2wuqbojjjwgglozj3f6hi",
			Price:       usdfc("25"),
			Verified:    true,
		},
		{
			ID:          big.NewInt(3),
			Name:        "DePIN Network Telemetry",
			Description: "Real-world IoT sensor data from distributed physical infrastructure",
			CID:         "bafybeiczsscdsbs7ffqz55asqdf3smv6klcw3gofszvwlyarci47bgf354",
			Price:       usdfc("50"),
			Verified:    false,
		},
		{
			ID:          big.NewInt(4),
			Name:        "Climate Model Training Set",
			Description: "Satellite imagery and weather data for climate prediction models",
			CID:         "bafybeihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzgevtenxquvyku",
			Price:       usdfc("75"),
			Verified:    true,
		},
		{
			ID:          big.NewInt(5),
			Name:        "Medical Imaging Commons",
			Description: "Anonymized medical scans with privacy-preserving verification",
			CID:         "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
			Price:       usdfc("100"),
			Verified:    true,
		},
	}
}
