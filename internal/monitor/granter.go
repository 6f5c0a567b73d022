package monitor

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v4"
)

type restrictor interface {
	ChatMemberOf(chat, user telebot.Recipient) (*telebot.ChatMember, error)
	Restrict(chat *telebot.Chat, member *telebot.ChatMember) error
}

// Granter grants the verified rank by lifting send restrictions in the group.
type Granter struct {
	bot  restrictor
	chat *telebot.Chat
}

func NewGranter(bot restrictor, groupChatID int64) *Granter {
	return &Granter{bot: bot, chat: &telebot.Chat{ID: groupChatID}}
}

// GrantRank lifts the restrictions of a group member. Members outside the
// group have nothing to lift; they are let in on join.
func (g *Granter) GrantRank(ctx context.Context, memberID int64) error {
	user := &telebot.User{ID: memberID}
	member, err := withContext(ctx, func() (*telebot.ChatMember, error) {
		return g.bot.ChatMemberOf(g.chat, user)
	})
	if err != nil {
		return fmt.Errorf("getting chat member: %w", err)
	}

	switch member.Role {
	case telebot.Left, telebot.Kicked, telebot.Creator, telebot.Administrator:
		return nil
	}

	if _, err := withContext(ctx, func() (struct{}, error) {
		return struct{}{}, g.bot.Restrict(g.chat, &telebot.ChatMember{
			User:            user,
			Rights:          telebot.NoRestrictions(),
			RestrictedUntil: telebot.Forever(),
		})
	}); err != nil {
		return fmt.Errorf("lifting restrictions: %w", err)
	}
	return nil
}

// Restrict prevents a member who has not verified from sending messages.
func (g *Granter) Restrict(memberID int64) error {
	if err := g.bot.Restrict(g.chat, &telebot.ChatMember{
		User:            &telebot.User{ID: memberID},
		Rights:          telebot.NoRights(),
		RestrictedUntil: telebot.Forever(),
	}); err != nil {
		return fmt.Errorf("restricting member: %w", err)
	}
	return nil
}

// withContext runs a bot API call, which takes no context, and gives up when
// ctx is done. The call itself is bounded by the bot's HTTP client timeout.
func withContext[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
