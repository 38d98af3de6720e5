package entities

import "time"

// Visibility controls who may see a privacy-guarded profile field
type Visibility string

const (
	VisibilityEveryone  Visibility = "everyone"
	VisibilityFollowers Visibility = "followers"
	VisibilityFollowing Visibility = "following"
	VisibilityBoth      Visibility = "both"
	VisibilityNone      Visibility = "none"
)

// Valid reports whether v is a known visibility setting
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityEveryone, VisibilityFollowers, VisibilityFollowing, VisibilityBoth, VisibilityNone:
		return true
	}
	return false
}

// Privacy holds the visibility setting of every guarded profile field.
// An empty setting behaves like everyone.
type Privacy struct {
	FollowerCount  Visibility `json:"followerCount,omitempty" dynamodbav:"followerCount,omitempty"`
	FollowingCount Visibility `json:"followingCount,omitempty" dynamodbav:"followingCount,omitempty"`
	QuestionCount  Visibility `json:"questionCount,omitempty" dynamodbav:"questionCount,omitempty"`
	LikeCount      Visibility `json:"likeCount,omitempty" dynamodbav:"likeCount,omitempty"`
	MostAsked      Visibility `json:"mostAsked,omitempty" dynamodbav:"mostAsked,omitempty"`
	MostLiked      Visibility `json:"mostLiked,omitempty" dynamodbav:"mostLiked,omitempty"`
	MostCommented  Visibility `json:"mostCommented,omitempty" dynamodbav:"mostCommented,omitempty"`
	MostFollowers  Visibility `json:"mostFollowers,omitempty" dynamodbav:"mostFollowers,omitempty"`
}

// ProfileStats are the denormalised counters kept on a profile
type ProfileStats struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
	Questions int `json:"questions"`
	Likes     int `json:"likes"`
}

// StatField names one of the profile counters
type StatField string

const (
	StatFollowers StatField = "followers"
	StatFollowing StatField = "following"
	StatQuestions StatField = "questions"
	StatLikes     StatField = "likes"
)

// Profile is a member record owned by the identity directory. The social graph
// manager maintains Followers, Following and the matching counters.
type Profile struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	ProfilePhoto string       `json:"profilePhoto,omitempty"`
	Bio          string       `json:"bio,omitempty"`
	Stats        ProfileStats `json:"stats"`
	Followers    []string     `json:"followers"`
	Following    []string     `json:"following"`
	Privacy      Privacy      `json:"privacy"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// DisplayName returns "First Last", falling back to the username
func (p *Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	default:
		return p.Username
	}
}

// HasFollower reports whether id follows p
func (p *Profile) HasFollower(id string) bool {
	return containsID(p.Followers, id)
}

// IsFollowing reports whether p follows id
func (p *Profile) IsFollowing(id string) bool {
	return containsID(p.Following, id)
}

// CanView applies a visibility setting for viewerID, who may be empty for anonymous callers.
// The owner can always see their own fields.
func (p *Profile) CanView(v Visibility, viewerID string) bool {
	if viewerID != "" && viewerID == p.ID {
		return true
	}
	switch v {
	case "", VisibilityEveryone:
		return true
	case VisibilityFollowers:
		return viewerID != "" && p.HasFollower(viewerID)
	case VisibilityFollowing:
		return viewerID != "" && p.IsFollowing(viewerID)
	case VisibilityBoth:
		return viewerID != "" && p.HasFollower(viewerID) && p.IsFollowing(viewerID)
	default:
		return false
	}
}

// Summary returns the public projection used in read-side joins
func (p *Profile) Summary() *ProfileSummary {
	return &ProfileSummary{
		ID:           p.ID,
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		ProfilePhoto: p.ProfilePhoto,
	}
}

// ProfileSummary is the author projection attached to questions, comments,
// notifications and conversations at read time
type ProfileSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
