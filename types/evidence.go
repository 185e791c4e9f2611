package types

// Origin identifies which retrieval source produced a piece of evidence.
type Origin string

const (
	// OriginInternal marks evidence retrieved from the curated document index.
	OriginInternal Origin = "internal"
	// OriginWeb marks evidence retrieved from the open web.
	OriginWeb Origin = "web"
)

// SourceDescriptor is an opaque provenance handle sufficient for citation.
// For internal evidence ID is the document ID and Location points into the
// document (file path, page); for web evidence ID is the URL.
// Equality is defined by origin identity (Origin + ID), not content.
type SourceDescriptor struct {
	Origin   Origin `json:"origin"`
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
}

// Identity returns the deduplication key for the source.
func (s SourceDescriptor) Identity() string {
	return string(s.Origin) + ":" + s.ID
}

// Evidence is a single retrieved snippet plus its score and provenance.
// Immutable once created.
type Evidence struct {
	Content string           `json:"content"`
	Source  SourceDescriptor `json:"source"`
	Score   float64          `json:"score"` // relevance in [0,1]
	Origin  Origin           `json:"origin"`
}

// NewInternalEvidence creates evidence originating from the document index.
func NewInternalEvidence(content string, source SourceDescriptor, score float64) Evidence {
	source.Origin = OriginInternal
	return Evidence{
		Content: content,
		Source:  source,
		Score:   clampScore(score),
		Origin:  OriginInternal,
	}
}

// NewWebEvidence creates evidence originating from a web search result.
func NewWebEvidence(content string, source SourceDescriptor, score float64) Evidence {
	source.Origin = OriginWeb
	return Evidence{
		Content: content,
		Source:  source,
		Score:   clampScore(score),
		Origin:  OriginWeb,
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// MaxScore returns the maximum score among the given evidence, or 0 when empty.
func MaxScore(evidence []Evidence) float64 {
	max := 0.0
	for _, e := range evidence {
		if e.Score > max {
			max = e.Score
		}
	}
	return max
}

// AverageScore returns the mean score among the given evidence, or 0 when empty.
func AverageScore(evidence []Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range evidence {
		sum += e.Score
	}
	return sum / float64(len(evidence))
}

// TotalContentLength returns the combined content length in bytes.
func TotalContentLength(evidence []Evidence) int {
	total := 0
	for _, e := range evidence {
		total += len(e.Content)
	}
	return total
}

// DedupSources collects source descriptors from evidence in first-seen order,
// dropping duplicate origin identities.
func DedupSources(evidence []Evidence) []SourceDescriptor {
	seen := make(map[string]bool, len(evidence))
	out := make([]SourceDescriptor, 0, len(evidence))
	for _, e := range evidence {
		key := e.Source.Identity()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e.Source)
	}
	return out
}
