package validator

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vedran77/chatter/internal/domain"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const maxMessageLen = 5000

func ValidateRegister(email, username, password string) ValidationErrors {
	errs := make(ValidationErrors)

	// Email
	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	// Username
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 30 {
		errs.Add("username", "Username is too long")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}

	// Password
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(email, password string) ValidationErrors {
	errs := make(ValidationErrors)

	email = strings.TrimSpace(email)
	if email == "" {
		errs.Add("email", "Email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Invalid email address")
	}

	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

// ValidateMessage is the single validation contract for the send-message
// shape, shared by the socket and REST paths: a message needs text or an
// attachment, and an attachment needs a URL and a known kind.
func ValidateMessage(text string, att *domain.Attachment) ValidationErrors {
	errs := make(ValidationErrors)

	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		errs.Add("text", "Message needs text or an attachment")
		return errs
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		errs.Add("text", fmt.Sprintf("Message cannot exceed %d characters", maxMessageLen))
	}

	if att != nil {
		if att.URL == "" {
			errs.Add("attachment.url", "Attachment URL is required")
		} else if _, err := url.ParseRequestURI(att.URL); err != nil {
			errs.Add("attachment.url", "Invalid attachment URL")
		}
		switch att.Kind {
		case domain.AttachmentImage, domain.AttachmentVideo, domain.AttachmentAudio, domain.AttachmentDocument:
		default:
			errs.Add("attachment.kind", "Attachment kind must be image, video, audio or document")
		}
	}

	return errs
}

func ValidateReaction(emoji string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(emoji) == "" {
		errs.Add("emoji", "Emoji is required")
	} else if utf8.RuneCountInString(emoji) > 16 {
		errs.Add("emoji", "Emoji is too long")
	}

	return errs
}

func ValidateProfile(username string, avatarURL *string) ValidationErrors {
	errs := make(ValidationErrors)

	username = strings.TrimSpace(username)
	if username != "" {
		if len(username) < 3 {
			errs.Add("username", "Username must be at least 3 characters")
		} else if len(username) > 30 {
			errs.Add("username", "Username is too long")
		} else if !usernameRegex.MatchString(username) {
			errs.Add("username", "Username can only contain letters, numbers, _ and -")
		}
	}

	if avatarURL != nil && *avatarURL != "" {
		if _, err := url.ParseRequestURI(*avatarURL); err != nil {
			errs.Add("avatar_url", "Invalid avatar URL")
		}
	}

	return errs
}

func ValidateResetPassword(password string) ValidationErrors {
	errs := make(ValidationErrors)
	validatePassword(password, errs)
	return errs
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
		return
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}

	if len(missing) > 0 {
		errs.Add("password", fmt.Sprintf("Password must contain at least %s", strings.Join(missing, ", ")))
	}
}
