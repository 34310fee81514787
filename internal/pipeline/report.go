package pipeline

import (
	"fmt"
	"strings"

	"fedlearn/internal/profile"
)

// Report renders the spec and its decision log as markdown. The output is a
// function of its inputs only.
func Report(spec Spec, p *profile.DatasetProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Pipeline for %s on `%s`\n\n", spec.Task, spec.Target)
	fmt.Fprintf(&b, "- Labelled rows: %d\n", spec.RowCount)
	if p != nil {
		fmt.Fprintf(&b, "- Data quality score: %.1f/100\n", p.QualityScore)
		if p.DuplicateRows > 0 {
			fmt.Fprintf(&b, "- Duplicate rows: %d\n", p.DuplicateRows)
		}
	}
	fmt.Fprintf(&b, "- Spec fingerprint: `%s`\n\n", shortFingerprint(spec.Fingerprint()))

	b.WriteString("## Features\n\n")
	b.WriteString("| Feature | Kind | Imputation | Scaling | Encoding | Clip |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, f := range spec.Preprocessing.Features {
		clip := ""
		if f.ClipOutliers {
			clip = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n", f.Name, f.Kind, f.Imputation, f.Scaling, f.Encoding, clip)
	}
	if len(spec.Preprocessing.Dropped) > 0 {
		b.WriteString("\nDropped:\n\n")
		for _, d := range spec.Preprocessing.Dropped {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.Name, d.Reason)
		}
	}

	b.WriteString("\n## Feature engineering\n\n")
	if e := spec.FeatureEngineering.Expansion; e.Enabled {
		fmt.Fprintf(&b, "- Polynomial degree %d over %s\n", e.Degree, strings.Join(e.Features, ", "))
	} else {
		b.WriteString("- No polynomial expansion\n")
	}
	if s := spec.FeatureEngineering.Selection; s.Enabled {
		fmt.Fprintf(&b, "- Select top %d features by %s\n", s.K, s.Method)
	} else {
		b.WriteString("- No feature selection\n")
	}

	b.WriteString("\n## Models\n\n")
	for i, m := range spec.Models {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, m.Name, m.Family)
	}

	b.WriteString("\n## Validation\n\n")
	switch v := spec.Validation; v.Strategy {
	case ValidationKFold:
		fmt.Fprintf(&b, "%d-fold cross-validation", v.Folds)
	default:
		fmt.Fprintf(&b, "Holdout split, %.0f%% test", v.TestFraction*100)
	}
	if spec.Validation.Stratify {
		b.WriteString(", stratified")
	}
	fmt.Fprintf(&b, ", seed %d\n", spec.Validation.Seed)

	b.WriteString("\n## Metrics\n\n")
	names := make([]string, len(spec.Metrics))
	for i, m := range spec.Metrics {
		names[i] = string(m)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\n## Decision log\n\n")
	for _, d := range spec.Decisions {
		if d.Feature != "" {
			fmt.Fprintf(&b, "- [%s] %s: %s (%s)\n", d.Stage, d.Feature, d.Choice, d.Reason)
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", d.Stage, d.Choice, d.Reason)
	}
	return b.String()
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
