// Package content describes a copywriting request and turns it into a
// prompt for the generation API.
package content

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Framework string

const (
	FrameworkAIDA      Framework = "AIDA"
	FrameworkPAS       Framework = "PAS"
	FrameworkBAB       Framework = "BAB"
	FrameworkFAB       Framework = "FAB"
	FrameworkQUEST     Framework = "QUEST"
	FrameworkFourP     Framework = "FOUR_P"
	FrameworkPASTOR    Framework = "PASTOR"
	FrameworkFreestyle Framework = "FREESTYLE"
)

type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneUrgent       Tone = "urgent"
	ToneWitty        Tone = "witty"
	ToneEmotional    Tone = "emotional"
	ToneLuxury       Tone = "luxury"
)

type Pillar string

const (
	PillarEducational     Pillar = "educational"
	PillarPromotional     Pillar = "promotional"
	PillarInspirational   Pillar = "inspirational"
	PillarEntertainment   Pillar = "entertainment"
	PillarBehindTheScenes Pillar = "behind_the_scenes"
	PillarCommunity       Pillar = "community"
)

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageBurmese Language = "my"
	LanguageThai    Language = "th"
)

// FrameworkDetail is the human description of a copywriting framework.
type FrameworkDetail struct {
	Title       string
	Description string
}

var Frameworks = map[Framework]FrameworkDetail{
	FrameworkAIDA:      {"AIDA Model", "Attention, Interest, Desire, Action. The classic copywriting formula."},
	FrameworkPAS:       {"PAS Formula", "Problem, Agitation, Solution. Perfect for addressing pain points."},
	FrameworkBAB:       {"Before-After-Bridge", "Show the current pain, the future benefit, and how to get there."},
	FrameworkFAB:       {"Feature-Advantage-Benefit", "Turn technical features into desirable benefits."},
	FrameworkQUEST:     {"QUEST", "Qualify, Understand, Educate, Stimulate, Transition."},
	FrameworkFourP:     {"The 4 Ps", "Promise, Picture, Proof, Push. Persuasive and visual."},
	FrameworkPASTOR:    {"PASTOR", "Problem, Amplify, Story, Transformation, Offer, Response."},
	FrameworkFreestyle: {"Freestyle / Social", "Creative, engaging posts for social media without a strict structure."},
}

var tones = map[Tone]string{
	ToneProfessional: "Professional",
	ToneFriendly:     "Friendly",
	ToneUrgent:       "Urgent",
	ToneWitty:        "Witty",
	ToneEmotional:    "Emotional",
	ToneLuxury:       "Luxury",
}

var pillars = map[Pillar]string{
	PillarEducational:     "Educational",
	PillarPromotional:     "Promotional",
	PillarInspirational:   "Inspirational",
	PillarEntertainment:   "Entertainment",
	PillarBehindTheScenes: "Behind the Scenes",
	PillarCommunity:       "Community/Reviews",
}

var languages = map[Language]string{
	LanguageEnglish: "English",
	LanguageBurmese: "Burmese (Myanmar)",
	LanguageThai:    "Thai",
}

func (f Framework) Valid() bool {
	_, ok := Frameworks[f]
	return ok
}

func (t Tone) Valid() bool {
	_, ok := tones[t]
	return ok
}

func (p Pillar) Valid() bool {
	_, ok := pillars[p]
	return ok
}

func (l Language) Valid() bool {
	_, ok := languages[l]
	return ok
}

func (t Tone) Label() string { return tones[t] }

func (p Pillar) Label() string { return pillars[p] }

func (l Language) Label() string { return languages[l] }

// Brand is a saved brand profile that pre-fills tone and audience.
type Brand struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Industry        string `json:"industry"`
	Description     string `json:"description"`
	DefaultTone     Tone   `json:"default_tone"`
	DefaultAudience string `json:"default_audience"`
}

// Validate checks the fields a user can submit for a new brand.
func (b Brand) Validate() error {
	var errs []error
	if strings.TrimSpace(b.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if utf8.RuneCountInString(b.Name) > MaxBrandNameLen {
		errs = append(errs, fmt.Errorf("name exceeds %d characters", MaxBrandNameLen))
	}
	if utf8.RuneCountInString(b.Description) > MaxDescriptionLen {
		errs = append(errs, fmt.Errorf("description exceeds %d characters", MaxDescriptionLen))
	}
	if b.DefaultTone != "" && !b.DefaultTone.Valid() {
		errs = append(errs, fmt.Errorf("unknown tone %q", b.DefaultTone))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

const (
	MaxTopicLen       = 200
	MaxDescriptionLen = 4000
	MaxAudienceLen    = 300
	MaxBrandNameLen   = 100
)

var ErrInvalid = errors.New("invalid content request")

// Request is one copywriting job.
type Request struct {
	Topic          string    `json:"topic"`
	Description    string    `json:"description"`
	Framework      Framework `json:"framework"`
	Pillar         Pillar    `json:"pillar"`
	Language       Language  `json:"language"`
	Tone           Tone      `json:"tone"`
	TargetAudience string    `json:"target_audience"`
	BrandID        string    `json:"brand_id,omitempty"`
	Brand          *Brand    `json:"-"`
}

// NewRequest returns a request with the form defaults.
func NewRequest() Request {
	return Request{
		Framework: FrameworkAIDA,
		Pillar:    PillarPromotional,
		Language:  LanguageEnglish,
		Tone:      ToneProfessional,
	}
}

// Normalize trims free text and fills empty enums with the defaults.
func (r *Request) Normalize() {
	def := NewRequest()

	r.Topic = strings.TrimSpace(r.Topic)
	r.Description = strings.TrimSpace(r.Description)
	r.TargetAudience = strings.TrimSpace(r.TargetAudience)

	if r.Framework == "" {
		r.Framework = def.Framework
	}
	if r.Pillar == "" {
		r.Pillar = def.Pillar
	}
	if r.Language == "" {
		r.Language = def.Language
	}
	if r.Tone == "" {
		r.Tone = def.Tone
	}
}

func (r Request) Validate() error {
	var errs []error

	if strings.TrimSpace(r.Topic) == "" {
		errs = append(errs, errors.New("topic is required"))
	}
	if utf8.RuneCountInString(r.Topic) > MaxTopicLen {
		errs = append(errs, fmt.Errorf("topic exceeds %d characters", MaxTopicLen))
	}
	if utf8.RuneCountInString(r.Description) > MaxDescriptionLen {
		errs = append(errs, fmt.Errorf("description exceeds %d characters", MaxDescriptionLen))
	}
	if utf8.RuneCountInString(r.TargetAudience) > MaxAudienceLen {
		errs = append(errs, fmt.Errorf("target audience exceeds %d characters", MaxAudienceLen))
	}
	if !r.Framework.Valid() {
		errs = append(errs, fmt.Errorf("unknown framework %q", r.Framework))
	}
	if !r.Pillar.Valid() {
		errs = append(errs, fmt.Errorf("unknown pillar %q", r.Pillar))
	}
	if !r.Language.Valid() {
		errs = append(errs, fmt.Errorf("unknown language %q", r.Language))
	}
	if !r.Tone.Valid() {
		errs = append(errs, fmt.Errorf("unknown tone %q", r.Tone))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ApplyBrand attaches b and takes over its default tone and audience.
// A nil brand detaches the current one and keeps the other fields.
func (r *Request) ApplyBrand(b *Brand) {
	if b == nil {
		r.Brand = nil
		r.BrandID = ""
		return
	}

	r.Brand = b
	r.BrandID = b.ID
	if b.DefaultTone != "" {
		r.Tone = b.DefaultTone
	}
	r.TargetAudience = b.DefaultAudience
}

// Clear empties the topic and description. The audience is kept while a
// brand is selected since it came from the brand.
func (r *Request) Clear() {
	r.Topic = ""
	r.Description = ""
	if r.Brand == nil {
		r.TargetAudience = ""
	}
}
