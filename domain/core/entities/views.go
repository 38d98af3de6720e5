package entities

import "time"

// CommentView is a comment joined with its author
type CommentView struct {
	Comment
	User *ProfileSummary `json:"userProfile,omitempty"`
}

// QuestionView is the read-side projection of a question. Anonymous questions
// never carry the sender, neither as id nor as profile.
type QuestionView struct {
	ID          string          `json:"id"`
	From        *ProfileSummary `json:"from,omitempty"`
	To          *ProfileSummary `json:"to,omitempty"`
	Text        string          `json:"text"`
	IsAnonymous bool            `json:"isAnonymous"`
	Answer      string          `json:"answer"`
	AnsweredAt  *time.Time      `json:"answeredAt,omitempty"`
	Likes       []string        `json:"likes"`
	LikeCount   int             `json:"likeCount"`
	Comments    []CommentView   `json:"comments"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ProfileLookup resolves profile summaries by id for read-side joins
type ProfileLookup func(id string) *ProfileSummary

// NewQuestionView projects q, resolving authors through lookup
func NewQuestionView(q *Question, lookup ProfileLookup) *QuestionView {
	view := &QuestionView{
		ID:          q.ID,
		To:          lookup(q.ToID),
		Text:        q.Text,
		IsAnonymous: q.IsAnonymous,
		Answer:      q.Answer,
		AnsweredAt:  q.AnsweredAt,
		Likes:       append([]string{}, q.Likes...),
		LikeCount:   len(q.Likes),
		Comments:    make([]CommentView, 0, len(q.Comments)),
		CreatedAt:   q.CreatedAt,
	}
	if from := q.VisibleFromID(); from != "" {
		view.From = lookup(from)
	}
	for _, c := range q.Comments {
		view.Comments = append(view.Comments, CommentView{Comment: c, User: lookup(c.UserID)})
	}
	return view
}

// ProfileView is the public rendering of a profile for a given viewer.
// Counters hidden by the owner's privacy settings are nil.
type ProfileView struct {
	*ProfileSummary
	Bio         string        `json:"bio,omitempty"`
	Followers   *int          `json:"followers,omitempty"`
	Following   *int          `json:"following,omitempty"`
	Questions   *int          `json:"questions,omitempty"`
	Likes       *int          `json:"likes,omitempty"`
	IsFollowing bool          `json:"isFollowing"`
	IsOwner     bool          `json:"isOwner"`
	Stats       *ProfileRanks `json:"stats,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// RankEntry is one row of a top-5 ranking
type RankEntry struct {
	User  *ProfileSummary `json:"user"`
	Count int             `json:"count"`
}

// Leaderboard is the cached global top-5 rankings
type Leaderboard struct {
	MostFollowers []RankEntry `json:"mostFollowers"`
	MostAnswered  []RankEntry `json:"mostAnswered"`
	MostLiked     []RankEntry `json:"mostLiked"`
	MostAsked     []RankEntry `json:"mostAsked"`
}

// ProfileRanks are the per-profile top-5 rankings. Lists hidden by privacy are nil.
type ProfileRanks struct {
	MostAsked     []RankEntry `json:"mostAsked,omitempty"`
	MostLiked     []RankEntry `json:"mostLiked,omitempty"`
	MostCommented []RankEntry `json:"mostCommented,omitempty"`
	MostFollowers []RankEntry `json:"mostFollowers,omitempty"`
}
