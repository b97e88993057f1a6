// Package recommend generates, scores and selects content recommendations.
//
// A recommendation pass has three stages:
//
//  1. GenerateCandidates blends five strategies (topic taste, co-engagement,
//     similar users, popularity, random) into a deduplicated candidate list.
//  2. ScoreCandidates computes a feature vector per candidate, combines it
//     with normalised feature weights into a score, ranks the candidates and
//     attributes each rank to the features that caused it.
//  3. Select serves either the top of the ranking or a biased sample of it.
//
// CandidateProbability and ScoringProbability estimate, for auditing, how
// likely an item is to be generated and then served. They never influence
// what is actually served.
//
// Service ties the stages together with a per-user cache of recent
// recommendations.
//
// Example:
//
//	cands := recommend.GenerateCandidates(graph, store, index, prof, 100, recommend.DefaultCandidateOptions(), rng)
//	scored, err := recommend.ScoreCandidates(graph, store, prof.ID, cands, prof, recommend.ScoringOptions{}, rng)
//	if err != nil {
//		return err
//	}
//	served := recommend.Select(scored, 10, recommend.SelectionDistribution, rng)
package recommend

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orneryd/feedgraph/pkg/storage"
)

// Errors returned by the recommender.
var (
	ErrMissingProfile = errors.New("missing user profile")
	ErrInvalidOptions = errors.New("invalid options")
)

// Origin names the strategy that produced a candidate.
type Origin string

// Candidate origins.
const (
	OriginTopicAffinity Origin = "topic_affinity"
	OriginCoengagement  Origin = "coengagement"
	OriginSimilarUser   Origin = "similar_user"
	OriginPopular       Origin = "popular"
	OriginRandom        Origin = "random"
)

// Recommendation is a candidate content item with its provenance.
//
// Only the provenance fields of the producing strategy are set.
type Recommendation struct {
	ContentID storage.NodeID `json:"contentId"`
	Origin    Origin         `json:"candidateOrigin"`
	Timestamp time.Time      `json:"timestamp"`

	// CandidateProbability is the audit estimate of the item being
	// generated. See CandidateProbability.
	CandidateProbability float64 `json:"candidateProbability,omitempty"`

	Topic         string  `json:"topic,omitempty"`
	TopicAffinity float64 `json:"topicAffinity,omitempty"`

	EngagedItem       storage.NodeID `json:"engagedItem,omitempty"`
	EngagedItemScore  float64        `json:"engagedItemScore,omitempty"`
	CoengagementScore float64        `json:"coengagementScore,omitempty"`

	SimilarUser         storage.NodeID `json:"similarUser,omitempty"`
	UserSimilarityScore float64        `json:"userSimilarityScore,omitempty"`

	PopularityScore float64 `json:"popularityScore,omitempty"`
}

// Feature names one scoring signal.
type Feature string

// Scoring features.
const (
	FeatureTaste        Feature = "taste"
	FeatureSharing      Feature = "sharing"
	FeatureCommenting   Feature = "commenting"
	FeatureFollowing    Feature = "following"
	FeatureReaction     Feature = "reaction"
	FeatureViewing      Feature = "viewing"
	FeatureRandom       Feature = "random"
	FeatureCoengagement Feature = "coengagement"
	FeatureLastSeen     Feature = "lastSeen"
	FeaturePopularity   Feature = "popularity"
	FeatureLastEngaged  Feature = "lastEngaged"
)

// Features lists every feature in vector order.
var Features = []Feature{
	FeatureTaste,
	FeatureSharing,
	FeatureCommenting,
	FeatureFollowing,
	FeatureReaction,
	FeatureViewing,
	FeatureRandom,
	FeatureCoengagement,
	FeatureLastSeen,
	FeaturePopularity,
	FeatureLastEngaged,
}

// FeatureValues maps features to values. A missing key means the feature
// was disabled or could not be computed.
type FeatureValues map[Feature]float64

// ScoredRecommendation is a candidate after scoring.
type ScoredRecommendation struct {
	Recommendation

	// Features are the raw signal values.
	Features FeatureValues `json:"features"`
	// Scores are the weighted contributions of each feature.
	Scores FeatureValues `json:"scores"`
	// Significance attributes the rank to features, each in [0,1].
	Significance FeatureValues `json:"significance"`

	// Score is the sum of Scores with tie-breaking jitter.
	Score float64 `json:"score"`
	// Rank is the 0-based position by Score.
	Rank int `json:"rank"`
	// RelativeRank is the audit rank rescaled to [0,1], set by
	// ScoringProbability.
	RelativeRank float64 `json:"relativeRank,omitempty"`
	// Diversity measures how far distribution sampling moved the item
	// from its ranked position.
	Diversity float64 `json:"diversity"`
	// Probability is the audit estimate of the item being served.
	Probability float64 `json:"probability,omitempty"`
}

// SelectionPolicy chooses how scored candidates are served.
type SelectionPolicy string

// Selection policies.
const (
	// SelectionRank serves the top items by score.
	SelectionRank SelectionPolicy = "rank"
	// SelectionDistribution serves a sample biased towards high scores.
	SelectionDistribution SelectionPolicy = "distribution"
)

// CandidateOptions are the relative weights of the generation strategies.
// Each strategy receives floor(count * weight / sum of weights) candidates.
type CandidateOptions struct {
	Taste        float64 `json:"taste" yaml:"taste" validate:"gte=0"`
	Coengaged    float64 `json:"coengaged" yaml:"coengaged" validate:"gte=0"`
	SimilarUsers float64 `json:"similarUsers" yaml:"similarUsers" validate:"gte=0"`
	Popular      float64 `json:"popular" yaml:"popular" validate:"gte=0"`
	Random       float64 `json:"random" yaml:"random" validate:"gte=0"`
}

// DefaultCandidateOptions weighs every strategy equally.
func DefaultCandidateOptions() CandidateOptions {
	return CandidateOptions{Taste: 2, Coengaged: 2, SimilarUsers: 2, Popular: 2, Random: 2}
}

func (o CandidateOptions) sum() float64 {
	return o.Taste + o.Coengaged + o.SimilarUsers + o.Popular + o.Random
}

// ScoringOptions disable features and control ranking.
type ScoringOptions struct {
	NoTasteScore        bool `json:"noTasteScore,omitempty" yaml:"noTasteScore"`
	NoSharingScore      bool `json:"noSharingScore,omitempty" yaml:"noSharingScore"`
	NoCommentingScore   bool `json:"noCommentingScore,omitempty" yaml:"noCommentingScore"`
	NoFollowingScore    bool `json:"noFollowingScore,omitempty" yaml:"noFollowingScore"`
	NoReactionScore     bool `json:"noReactionScore,omitempty" yaml:"noReactionScore"`
	NoViewingScore      bool `json:"noViewingScore,omitempty" yaml:"noViewingScore"`
	NoCoengagementScore bool `json:"noCoengagementScore,omitempty" yaml:"noCoengagementScore"`
	NoLastSeenScore     bool `json:"noLastSeenScore,omitempty" yaml:"noLastSeenScore"`
	NoPopularity        bool `json:"noPopularity,omitempty" yaml:"noPopularity"`
	NoLastEngagedScore  bool `json:"noLastEngagedScore,omitempty" yaml:"noLastEngagedScore"`

	// ExcludeSignificance skips the O(n^2) significance attribution.
	ExcludeSignificance bool `json:"excludeSignificance,omitempty" yaml:"excludeSignificance"`

	// Selection is the serving policy. Select defaults to distribution,
	// ScoringProbability defaults to rank.
	Selection SelectionPolicy `json:"selection,omitempty" yaml:"selection" validate:"omitempty,oneof=rank distribution"`
}

// Disable switches off the named features. Unknown names and "random",
// which cannot be switched, yield an ErrInvalidOptions error after the
// known ones are applied.
func (o *ScoringOptions) Disable(features ...Feature) error {
	var unknown []string
	for _, f := range features {
		switch f {
		case FeatureTaste:
			o.NoTasteScore = true
		case FeatureSharing:
			o.NoSharingScore = true
		case FeatureCommenting:
			o.NoCommentingScore = true
		case FeatureFollowing:
			o.NoFollowingScore = true
		case FeatureReaction:
			o.NoReactionScore = true
		case FeatureViewing:
			o.NoViewingScore = true
		case FeatureCoengagement:
			o.NoCoengagementScore = true
		case FeatureLastSeen:
			o.NoLastSeenScore = true
		case FeaturePopularity:
			o.NoPopularity = true
		case FeatureLastEngaged:
			o.NoLastEngagedScore = true
		default:
			unknown = append(unknown, string(f))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown features %s", ErrInvalidOptions, strings.Join(unknown, ", "))
	}
	return nil
}

// enabled reports the global enable flag of a feature: 1 or 0.
func (o ScoringOptions) enabled(f Feature) float64 {
	var off bool
	switch f {
	case FeatureTaste:
		off = o.NoTasteScore
	case FeatureSharing:
		off = o.NoSharingScore
	case FeatureCommenting:
		off = o.NoCommentingScore
	case FeatureFollowing:
		off = o.NoFollowingScore
	case FeatureReaction:
		off = o.NoReactionScore
	case FeatureViewing:
		off = o.NoViewingScore
	case FeatureCoengagement:
		off = o.NoCoengagementScore
	case FeatureLastSeen:
		off = o.NoLastSeenScore
	case FeaturePopularity:
		off = o.NoPopularity
	case FeatureLastEngaged:
		off = o.NoLastEngagedScore
	case FeatureRandom:
		return 0
	}
	if off {
		return 0
	}
	return 1
}

// RecommendationOptions configure one full recommendation pass.
type RecommendationOptions struct {
	CandidateOptions `yaml:",inline"`
	ScoringOptions   `yaml:",inline"`
}
