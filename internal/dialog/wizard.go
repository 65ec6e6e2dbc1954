package dialog

import (
	"fmt"

	"github.com/oggyb/matchbot/internal/chat"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/profile"
	"github.com/oggyb/matchbot/internal/session"
)

// Profile wizard: AGE -> GENDER -> CITY -> SEEKING -> GOAL -> BIO, then
// photos. Answers stay in the draft until the bio step commits them, so
// cancelling midway leaves the stored profile untouched.

func (e *Engine) startProfile(t *turn) error {
	t.sess.Reset()
	t.sess.Draft.Editing = t.user.ProfileFilled()
	t.sess.State = session.StateProfileAge
	t.say(fmt.Sprintf("How old are you? Send a number from %d to %d.", profile.MinAge, profile.MaxAge), cancelOnly())
	return nil
}

func (e *Engine) profileAge(t *turn) error {
	age, err := profile.ParseAge(t.text)
	if err != nil {
		return err
	}
	t.sess.Draft.Age = age
	t.sess.State = session.StateProfileGender
	t.say("What is your gender?", genderKeyboard(false))
	return nil
}

func (e *Engine) profileGender(t *turn) error {
	gender, err := profile.ParseGender(t.text)
	if err != nil {
		return err
	}
	t.sess.Draft.Gender = gender
	t.sess.State = session.StateProfileCity
	t.say("Which city do you live in? Pick one or type it.", cityKeyboard(e.popularCities(t), nil, LabelCancel))
	return nil
}

func (e *Engine) profileCity(t *turn) error {
	city, err := profile.ParseCity(t.text)
	if err != nil {
		return err
	}
	t.sess.Draft.City = city
	t.sess.State = session.StateProfileSeeking
	t.say("Who would you like to meet?", genderKeyboard(true))
	return nil
}

func (e *Engine) profileSeeking(t *turn) error {
	seeking, err := profile.ParseSeeking(t.text)
	if err != nil {
		return err
	}
	t.sess.Draft.SeekingGender = seeking
	t.sess.State = session.StateProfileGoal
	t.say("What are you looking for?", goalKeyboard())
	return nil
}

func (e *Engine) profileGoal(t *turn) error {
	goal, err := profile.ParseGoal(t.text)
	if err != nil {
		return err
	}
	t.sess.Draft.Goal = goal
	t.sess.State = session.StateProfileBio
	t.say(fmt.Sprintf("Tell a little about yourself (at least %d characters).", profile.MinBio), cancelOnly())
	return nil
}

func (e *Engine) profileBio(t *turn) error {
	bio, err := profile.ParseBio(t.text)
	if err != nil {
		return err
	}
	d := &t.sess.Draft
	d.Bio = bio

	u, err := e.users.UpdateProfile(t.ctx, t.user.ID, profile.Profile{
		Age:           d.Age,
		Gender:        d.Gender,
		City:          d.City,
		SeekingGender: d.SeekingGender,
		Goal:          d.Goal,
		Bio:           d.Bio,
	})
	if err != nil {
		return err
	}
	t.user = u
	t.log.Info("profile saved", "editing", d.Editing)

	d.PhotosAdded = 0
	t.sess.State = session.StateAddMainPhoto
	prompt := "📸 Now send your main photo."
	if d.Editing && u.HasPhoto {
		prompt = "📸 Send a new main photo, or press “finish” to keep your current photos."
	}
	t.say(prompt, photoKeyboard())
	return nil
}

func (e *Engine) addPhoto(t *turn) error {
	if t.upd.Kind != chat.KindPhoto {
		if t.text == LabelFinish {
			return e.finishPhotos(t)
		}
		return svcErr.Validation("Please send a photo, or press “finish”.")
	}

	d := &t.sess.Draft
	var count int
	var err error
	if d.Editing && d.PhotosAdded == 0 && t.user.HasPhoto {
		err = e.photos.Replace(t.ctx, t.user.ID, t.upd.PhotoID)
		count = 1
	} else {
		count, err = e.photos.Add(t.ctx, t.user.ID, t.upd.PhotoID)
	}
	if err != nil {
		return err
	}
	d.PhotosAdded++

	if count >= e.photos.Max() {
		return e.finishPhotos(t)
	}
	t.say(fmt.Sprintf("Photo %d of %d saved. Send another one or press “finish”.", count, e.photos.Max()), photoKeyboard())
	return nil
}

func (e *Engine) finishPhotos(t *turn) error {
	u, err := e.users.Get(t.ctx, t.user.ID)
	if err != nil {
		return err
	}
	t.user = u
	if !u.HasPhoto {
		return svcErr.Validation("Your profile needs at least one photo. Please send one.")
	}
	t.sess.Reset()
	t.say(fmt.Sprintf("✅ Your profile is ready! ⭐ Rating: %.1f", u.Rating), e.menuFor(t))
	return nil
}
