package rank

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "kudos/pkg/domain-errors"
)

// testLevels mirrors the canonical three-band table used across the engine
// tests: Rookie 0-9, Private 10-49, Corporal 50+.
var testLevels = []Level{
	{Min: 0, Max: 9, Label: "Rookie"},
	{Min: 10, Max: 49, Label: "Private"},
	{Min: 50, Max: Unbounded, Label: "Corporal"},
}

type ResolverSuite struct {
	suite.Suite
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	resolver, err := NewResolver(testLevels)
	s.Require().NoError(err)
	s.resolver = resolver
}

func (s *ResolverSuite) TestResolve() {
	s.Run("total in middle band", func() {
		standing, err := s.resolver.Resolve(15)
		s.Require().NoError(err)
		s.Equal("Private", standing.Label)
		s.InDelta(12.5, standing.Progress, 0.0001)
		s.Equal(35, standing.PointsToNext)
		s.Equal("Corporal", standing.NextLabel)
	})

	s.Run("band boundaries are inclusive", func() {
		low, err := s.resolver.Resolve(10)
		s.Require().NoError(err)
		s.Equal("Private", low.Label)
		s.Zero(low.Progress)

		high, err := s.resolver.Resolve(49)
		s.Require().NoError(err)
		s.Equal("Private", high.Label)
	})

	s.Run("negative total resolves to lowest band", func() {
		standing, err := s.resolver.Resolve(-25)
		s.Require().NoError(err)
		s.Equal("Rookie", standing.Label)
		s.Zero(standing.Progress)
		s.Equal(35, standing.PointsToNext)
	})

	s.Run("top band reports max", func() {
		standing, err := s.resolver.Resolve(5000)
		s.Require().NoError(err)
		s.Equal("Corporal", standing.Label)
		s.Equal(float64(100), standing.Progress)
		s.Zero(standing.PointsToNext)
		s.Equal(NextLabelMax, standing.NextLabel)
	})

	s.Run("progress always within bounds", func() {
		for total := -100; total <= 200; total += 7 {
			standing, err := s.resolver.Resolve(total)
			s.Require().NoError(err)
			s.GreaterOrEqual(standing.Progress, float64(0))
			s.LessOrEqual(standing.Progress, float64(100))
			s.GreaterOrEqual(standing.PointsToNext, 0)
		}
	})

	s.Run("rank never decreases as total grows", func() {
		bandIndex := func(label string) int {
			for i, level := range testLevels {
				if level.Label == label {
					return i
				}
			}
			return -1
		}
		prev := -1
		for total := 0; total <= 120; total++ {
			standing, err := s.resolver.Resolve(total)
			s.Require().NoError(err)
			idx := bandIndex(standing.Label)
			s.GreaterOrEqual(idx, prev)
			prev = idx
		}
	})
}

func (s *ResolverSuite) TestNewResolverValidation() {
	s.Run("rejects empty table", func() {
		_, err := NewResolver(nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("rejects gap between bands", func() {
		_, err := NewResolver([]Level{
			{Min: 0, Max: 9, Label: "Rookie"},
			{Min: 11, Max: Unbounded, Label: "Private"},
		})
		s.Require().Error(err)
	})

	s.Run("rejects overlapping bands", func() {
		_, err := NewResolver([]Level{
			{Min: 0, Max: 10, Label: "Rookie"},
			{Min: 10, Max: Unbounded, Label: "Private"},
		})
		s.Require().Error(err)
	})

	s.Run("rejects inverted band", func() {
		_, err := NewResolver([]Level{
			{Min: 10, Max: 5, Label: "Rookie"},
		})
		s.Require().Error(err)
	})

	s.Run("rejects bounded top band", func() {
		_, err := NewResolver([]Level{
			{Min: 0, Max: 99, Label: "Rookie"},
		})
		s.Require().Error(err)
	})

	s.Run("accepts the default table", func() {
		s.NotPanics(func() { Default() })
	})
}
