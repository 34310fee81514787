package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"fedlearn/internal/profile"
	"fedlearn/internal/table"
)

type GeneratorSuite struct {
	suite.Suite
	gen *Generator
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

func (s *GeneratorSuite) SetupTest() {
	s.gen = NewGenerator()
}

var cities = []string{"Paris", "Lyon", "Nice", "Lille", "Nantes", "Brest", "Metz", "Dijon", "Tours", "Reims", "Caen", "Pau"}

func (s *GeneratorSuite) profileOf(rows int, names []string, cell func(r, c int) string, target string) *profile.DatasetProfile {
	data := make([][]string, rows)
	for r := range data {
		data[r] = make([]string, len(names))
		for c := range names {
			data[r][c] = cell(r, c)
		}
	}
	tbl, err := table.New(names, data)
	s.Require().NoError(err)
	p, err := profile.Profile(tbl, target)
	s.Require().NoError(err)
	return p
}

func (s *GeneratorSuite) scenarioProfile() *profile.DatasetProfile {
	return s.profileOf(500, []string{"age", "city", "target"}, func(r, c int) string {
		switch c {
		case 0:
			return fmt.Sprintf("%d", 18+(r*7)%60)
		case 1:
			return cities[r%len(cities)]
		default:
			return fmt.Sprintf("%.2f", float64(r)*0.8+float64(r%9))
		}
	}, "target")
}

// TestRegressionScenario covers a 500-row table with a numeric and a
// 12-category feature.
func (s *GeneratorSuite) TestRegressionScenario() {
	spec, err := s.gen.Generate(s.scenarioProfile(), "target", TaskRegression)
	s.Require().NoError(err)

	age, ok := spec.Feature("age")
	s.Require().True(ok)
	s.Equal(KindNumeric, age.Kind)
	s.Equal(ScalingStandard, age.Scaling)
	s.Equal(ImputeMean, age.Imputation)

	city, ok := spec.Feature("city")
	s.Require().True(ok)
	s.Equal(KindCategorical, city.Kind)
	s.Equal(EncodingOneHot, city.Encoding)
	s.Equal(12, city.Cardinality)

	s.Equal(ValidationHoldout, spec.Validation.Strategy)
	s.Equal(0.2, spec.Validation.TestFraction)
	s.False(spec.Validation.Stratify)
	s.Equal([]Metric{MetricRMSE, MetricMAE, MetricR2}, spec.Metrics)

	s.Require().Len(spec.Models, 3)
	s.Equal(FamilyLinear, spec.Models[0].Family)
	s.Equal(FamilyTree, spec.Models[1].Family)
	s.Equal(FamilyForest, spec.Models[2].Family)
	s.Equal(9.0, spec.Models[1].Hyperparameters["max_depth"])
	s.Equal(50.0, spec.Models[2].Hyperparameters["n_estimators"])

	s.True(spec.FeatureEngineering.Expansion.Enabled)
	s.Equal([]string{"age"}, spec.FeatureEngineering.Expansion.Features)
	s.False(spec.FeatureEngineering.Selection.Enabled)
	s.NotEmpty(spec.Decisions)
}

func (s *GeneratorSuite) TestDeterministic() {
	p := s.scenarioProfile()
	a, err := s.gen.Generate(p, "target", TaskRegression)
	s.Require().NoError(err)
	b, err := NewGenerator().Generate(p, "target", TaskRegression)
	s.Require().NoError(err)

	s.Equal(a, b)
	s.Equal(a.Fingerprint(), b.Fingerprint())
	s.Len(a.Fingerprint(), 64)
}

func (s *GeneratorSuite) TestCloneIsIndependent() {
	spec, err := s.gen.Generate(s.scenarioProfile(), "target", TaskRegression)
	s.Require().NoError(err)
	fp := spec.Fingerprint()

	c := spec.Clone()
	c.Models[0].Hyperparameters["l2"] = 9
	c.Preprocessing.Features[0].Scaling = ScalingRobust
	s.Equal(fp, spec.Fingerprint())
}

func (s *GeneratorSuite) TestSingleValuedColumnExcluded() {
	p := s.profileOf(60, []string{"x", "flag", "y"}, func(r, c int) string {
		switch c {
		case 0:
			return fmt.Sprintf("%d", r)
		case 1:
			return "on"
		default:
			return fmt.Sprintf("%d", r%2)
		}
	}, "y")

	spec, err := s.gen.Generate(p, "y", TaskClassification)
	s.Require().NoError(err)

	_, ok := spec.Feature("flag")
	s.False(ok)
	s.Require().Len(spec.Preprocessing.Dropped, 1)
	s.Equal("flag", spec.Preprocessing.Dropped[0].Name)
	s.Equal(ValidationKFold, spec.Validation.Strategy)
	s.Equal(5, spec.Validation.Folds)
	s.True(spec.Validation.Stratify)
	s.Equal(MetricConfusionMatrix, spec.Metrics[len(spec.Metrics)-1])
}

func (s *GeneratorSuite) TestErrors() {
	p := s.scenarioProfile()

	s.Run("target absent from profile", func() {
		_, err := s.gen.Generate(p, "price", TaskRegression)
		s.ErrorIs(err, ErrInvalidTask)
	})

	s.Run("unrecognized task type", func() {
		_, err := s.gen.Generate(p, "target", TaskType("clustering"))
		s.ErrorIs(err, ErrInvalidTask)
	})

	s.Run("regression on a categorical target", func() {
		cp := s.profileOf(40, []string{"x", "label"}, func(r, c int) string {
			if c == 0 {
				return fmt.Sprintf("%d", r)
			}
			return []string{"a", "b"}[r%2]
		}, "label")
		_, err := s.gen.Generate(cp, "label", TaskRegression)
		s.ErrorIs(err, ErrInvalidTask)
	})

	s.Run("classification with a single class", func() {
		cp := s.profileOf(40, []string{"x", "label"}, func(r, c int) string {
			if c == 0 {
				return fmt.Sprintf("%d", r)
			}
			return "a"
		}, "label")
		_, err := s.gen.Generate(cp, "label", TaskClassification)
		s.ErrorIs(err, ErrInvalidTask)
	})

	s.Run("too few rows", func() {
		cp := s.profileOf(8, []string{"x", "y"}, func(r, c int) string {
			return fmt.Sprintf("%d", r*(c+1))
		}, "y")
		_, err := s.gen.Generate(cp, "y", TaskRegression)
		s.ErrorIs(err, ErrInsufficientData)
	})

	s.Run("no usable features", func() {
		cp := s.profileOf(30, []string{"same", "y"}, func(r, c int) string {
			if c == 0 {
				return "k"
			}
			return fmt.Sprintf("%d", r)
		}, "y")
		_, err := s.gen.Generate(cp, "y", TaskRegression)
		s.ErrorIs(err, ErrInsufficientData)
	})
}

func (s *GeneratorSuite) TestReport() {
	p := s.scenarioProfile()
	spec, err := s.gen.Generate(p, "target", TaskRegression)
	s.Require().NoError(err)

	out := Report(spec, p)
	s.Contains(out, "| city | categorical | most_frequent | none | onehot |")
	s.Contains(out, "Holdout split, 20% test")
	s.Contains(out, "rmse, mae, r2")
	s.Equal(out, Report(spec, p))
}
