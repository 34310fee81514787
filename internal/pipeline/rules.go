package pipeline

// Rules holds the thresholds used by the decision functions. The zero value
// is not useful; start from DefaultRules.
type Rules struct {
	// MaxMissingFraction drops features missing more than this share.
	MaxMissingFraction float64
	// SkewThreshold switches imputation to median and scaling to robust.
	SkewThreshold float64
	// OutlierClipFraction enables IQR clipping above this outlier share.
	OutlierClipFraction float64
	// OneHotMaxCardinality is the largest cardinality that is one-hot encoded.
	OneHotMaxCardinality int
	// OrdinalMaxCardinality is the largest cardinality that is ordinal encoded;
	// anything above uses frequency encoding.
	OrdinalMaxCardinality int
	// ExpansionMaxNumeric is the largest numeric feature count that still
	// gets polynomial expansion.
	ExpansionMaxNumeric int
	// SelectionRowFraction enables feature selection when the encoded width
	// exceeds this share of the row count.
	SelectionRowFraction float64
	// KFoldMaxRows is the row count below which k-fold validation is used.
	KFoldMaxRows int
	Folds        int
	TestFraction float64
	Seed         int64
	// MinRows is the absolute minimum number of labelled rows.
	MinRows int
	// ImbalanceRatio enables balanced class weights above this majority/minority ratio.
	ImbalanceRatio float64
	MaxTreeDepth   int
	MinTrees       int
	MaxTrees       int
}

// DefaultRules returns the production thresholds.
func DefaultRules() Rules {
	return Rules{
		MaxMissingFraction:    0.6,
		SkewThreshold:         1.0,
		OutlierClipFraction:   0.1,
		OneHotMaxCardinality:  20,
		OrdinalMaxCardinality: 50,
		ExpansionMaxNumeric:   4,
		SelectionRowFraction:  0.1,
		KFoldMaxRows:          300,
		Folds:                 5,
		TestFraction:          0.2,
		Seed:                  42,
		MinRows:               10,
		ImbalanceRatio:        3.0,
		MaxTreeDepth:          12,
		MinTrees:              10,
		MaxTrees:              200,
	}
}
