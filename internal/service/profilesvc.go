package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"ourpainthub/internal/domain"
)

const (
	maxNicknameLen = 48
	maxBioLen      = 2000
	maxAvatarBytes = 7 << 20
	minAge         = 7
)

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	SaveProfile(ctx context.Context, p domain.Profile) (domain.Profile, error)
}

type FriendChecker interface {
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
}

// ProfileUpdate carries the fields a user asked to change; nil means untouched.
// An empty DateOfBirth or Avatar clears the stored value.
type ProfileUpdate struct {
	Nickname    *string
	Bio         *string
	DateOfBirth *string
	Avatar      *string
}

type ProfileService struct {
	Profiles ProfileStore
	Friends  FriendChecker
	Audit    AuditRecorder
	Now      func() time.Time
}

// GetProfile returns targetID's profile. Only the owner and confirmed friends
// may read it.
func (s *ProfileService) GetProfile(ctx context.Context, viewerID, targetID string) (domain.Profile, error) {
	if targetID == "" {
		targetID = viewerID
	}
	p, err := s.Profiles.GetProfile(ctx, targetID)
	if err != nil {
		return domain.Profile{}, err
	}
	if targetID == viewerID {
		return p, nil
	}
	ok, err := s.Friends.AreFriends(ctx, viewerID, targetID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !ok {
		return domain.Profile{}, domain.ErrForbidden
	}
	return p, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (domain.Profile, error) {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	if upd.Nickname == nil && upd.Bio == nil && upd.DateOfBirth == nil && upd.Avatar == nil {
		return domain.Profile{}, domain.NewValidationError(map[string]string{"profile": "no changes"})
	}

	p, err := s.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, err
	}

	fields := map[string]string{}
	if upd.Nickname != nil {
		nick := normalizeNickname(*upd.Nickname)
		if nick == "" {
			fields["nickname"] = "required"
		} else if reason := checkNickname(nick); reason != "" {
			fields["nickname"] = reason
		} else {
			p.Nickname = nick
		}
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			fields["bio"] = "must be 2000 characters or less"
		} else {
			p.Bio = bio
		}
	}
	if upd.DateOfBirth != nil {
		dob, reason := parseDateOfBirth(*upd.DateOfBirth, now())
		if reason != "" {
			fields["date_of_birth"] = reason
		} else {
			p.DateOfBirth = dob
		}
	}
	if upd.Avatar != nil {
		data, contentType, reason := decodeAvatar(*upd.Avatar)
		if reason != "" {
			fields["avatar"] = reason
		} else {
			p.Avatar, p.AvatarType = data, contentType
		}
	}
	if len(fields) > 0 {
		return domain.Profile{}, domain.NewValidationError(fields)
	}

	p.UpdatedAt = now().UTC()
	saved, err := s.Profiles.SaveProfile(ctx, p)
	if err != nil {
		return domain.Profile{}, err
	}
	record(ctx, s.Audit, userID, domain.AuditChange, "profile", userID)
	return saved, nil
}

// AvatarDataURI renders a stored avatar for JSON responses.
func AvatarDataURI(p domain.Profile) string {
	if len(p.Avatar) == 0 {
		return ""
	}
	return "data:" + p.AvatarType + ";base64," + base64.StdEncoding.EncodeToString(p.Avatar)
}

func normalizeNickname(s string) string {
	return strings.TrimSpace(s)
}

func checkNickname(s string) string {
	if utf8.RuneCountInString(s) > maxNicknameLen {
		return "must be 48 characters or less"
	}
	for _, r := range s {
		if r < 32 || r == 0x7f {
			return "contains invalid characters"
		}
	}
	return ""
}

func parseDateOfBirth(raw string, now time.Time) (*time.Time, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	dob, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, "must be YYYY-MM-DD"
	}
	if dob.AddDate(minAge, 0, 0).After(now) {
		return nil, "must be at least 7 years ago"
	}
	return &dob, ""
}

// decodeAvatar accepts plain base64 or a data URI. The declared MIME type is
// ignored in favour of sniffing the bytes.
func decodeAvatar(raw string) ([]byte, string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", ""
	}
	if strings.HasPrefix(raw, "data:") {
		_, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, "", "invalid data uri"
		}
		raw = payload
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > maxAvatarBytes+3 {
		return nil, "", "must be 7MB or less"
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", "must be base64 encoded"
	}
	if len(data) > maxAvatarBytes {
		return nil, "", "must be 7MB or less"
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", "must be an image"
	}
	return data, contentType, ""
}
