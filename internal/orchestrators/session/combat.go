package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
	"github.com/tavernkeep/dm-engine/internal/narrator"
	"github.com/tavernkeep/dm-engine/internal/rules/combat"
	sessionsvc "github.com/tavernkeep/dm-engine/internal/services/session"
)

// playerCombatantID is the fixed id the combat engine assigns the player
const playerCombatantID = "player"

var fleeKeywords = []string{"flee", "run away", "retreat"}

// clearedFlag marks a once-only encounter as fought and won
func clearedFlag(encounterID string) string {
	return "cleared:" + encounterID
}

// startEncounter opens the first eligible encounter at the current node.
// Nodes without an eligible encounter leave the turn as pure narration.
func (o *Orchestrator) startEncounter(ctx context.Context, live *liveSession) ([]string, error) {
	node, err := live.world.CurrentNode()
	if err != nil {
		return nil, err
	}

	var ref *entities.EncounterReference
	for i := range node.Encounters {
		candidate := &node.Encounters[i]
		if candidate.OnceOnly && live.world.HasFlag(clearedFlag(candidate.EncounterID)) {
			continue
		}
		eligible := true
		for _, flag := range candidate.RequiresFlags {
			if !live.world.HasFlag(flag) {
				eligible = false
				break
			}
		}
		if eligible {
			ref = candidate
			break
		}
	}
	if ref == nil {
		return nil, nil
	}

	enc, err := live.world.Encounter(ref.EncounterID)
	if err != nil {
		return nil, err
	}

	player, err := live.combat.CreatePlayerCombatant(ctx, live.world.State().Character)
	if err != nil {
		return nil, err
	}
	enemies, err := live.combat.CreateEncounterCombatants(ctx, enc)
	if err != nil {
		return nil, err
	}

	start, err := live.combat.StartCombat(player, enemies)
	if err != nil {
		return nil, err
	}
	live.encounter = enc.EncounterID
	live.world.SetMode(entities.ModeCombat)

	var lines []string
	if enc.IntroNarration != "" {
		lines = append(lines, enc.IntroNarration)
	}
	for _, entry := range start.Initiative {
		lines = append(lines, fmt.Sprintf("%s rolls initiative: %d", entry.Name, entry.Total))
	}

	// resolve any enemy turns ahead of the player
	if current := live.combat.CurrentCombatant(); current != nil && !current.IsPlayer {
		lines, _, _, err = o.runEnemyTurns(ctx, live, lines)
		if err != nil {
			return nil, err
		}
	}

	o.log.InfoContext(ctx, "encounter started",
		"encounter_id", enc.EncounterID,
		"node_id", node.NodeID,
		"enemies", len(enemies))

	return lines, nil
}

// combatTurn resolves one player action plus the enemy turns that follow
// it, ending combat when a side is out of the fight.
func (o *Orchestrator) combatTurn(ctx context.Context, live *liveSession, text string) (*sessionsvc.ProcessInputOutput, error) {
	eng := live.combat
	lower := strings.ToLower(strings.TrimSpace(text))

	out := &sessionsvc.ProcessInputOutput{
		Speaker:        narrator.SpeakerDM,
		PortraitType:   narrator.PortraitDM,
		PortraitSource: live.narrator.DMPortrait(),
		InCombat:       true,
	}

	if strings.Contains(lower, "status") {
		out.Narration = "The fight rages on."
		return out, nil
	}

	for _, keyword := range fleeKeywords {
		if strings.Contains(lower, keyword) {
			lines := o.finishCombat(ctx, live, false, []string{"You break away and flee the fight!"}, true)
			out.Narration = strings.Join(lines, "\n")
			out.InCombat = false
			return out, nil
		}
	}

	player := eng.Combatant(playerCombatantID)
	if player == nil {
		return nil, errors.Internal("no player combatant in active combat")
	}

	var lines []string
	if !player.IsConscious {
		var ended bool
		lines, ended = o.playerDeathSave(ctx, live, lines)
		if ended {
			out.Narration = strings.Join(lines, "\n")
			out.InCombat = false
			return out, nil
		}
		if !player.IsConscious {
			// still down, the round pauses on the dying player
			out.Narration = strings.Join(lines, "\n")
			return out, nil
		}
	} else {
		target := o.pickTarget(eng, lower)
		if target == nil {
			out.Narration = "There is nothing left to fight."
			return out, nil
		}
		result, err := eng.Attack(playerCombatantID, target.ID, 0)
		if err != nil {
			return nil, err
		}
		lines = append(lines, result.String())
		if result.TargetState != "" {
			lines = append(lines, result.TargetState)
		}
	}

	if ended, victory := eng.CheckCombatEnd(); ended {
		lines = o.finishCombat(ctx, live, victory, lines, false)
		out.Narration = strings.Join(lines, "\n")
		out.InCombat = false
		return out, nil
	}

	lines, ended, victory, err := o.runEnemyTurns(ctx, live, lines)
	if err != nil {
		return nil, err
	}
	if ended {
		lines = o.finishCombat(ctx, live, victory, lines, false)
		out.InCombat = false
	}

	out.Narration = strings.Join(lines, "\n")
	return out, nil
}

// playerDeathSave rolls one death save. It returns true when the fight
// is over because the player died or stabilized out of it.
func (o *Orchestrator) playerDeathSave(ctx context.Context, live *liveSession, lines []string) ([]string, bool) {
	ds, err := live.combat.RollDeathSave(playerCombatantID)
	if err != nil {
		lines = append(lines, errors.GetMessage(err))
		return lines, false
	}

	lines = append(lines, fmt.Sprintf("Death save: %d (%d successes, %d failures)",
		ds.Roll.Total, ds.Successes, ds.Failures))

	switch {
	case ds.Dead:
		lines = o.finishCombat(ctx, live, false, lines, false)
		return lines, true
	case ds.Revived:
		lines = append(lines, "You surge back to consciousness with 1 HP!")
	case ds.Stable:
		lines = append(lines, "You are stable, but unconscious as the fight moves past you.")
		lines = o.finishCombat(ctx, live, false, lines, false)
		return lines, true
	}
	return lines, false
}

// runEnemyTurns advances turns until the player is up again, each enemy
// attacking the player. Enemies hold their attacks once the player is
// down.
func (o *Orchestrator) runEnemyTurns(ctx context.Context, live *liveSession, lines []string) ([]string, bool, bool, error) {
	eng := live.combat
	limit := len(eng.Status().Entries) + 1

	for i := 0; i < limit; i++ {
		turn, err := eng.NextTurn()
		if err != nil {
			return lines, false, false, err
		}
		current := eng.Combatant(turn.CurrentID)
		if current == nil || current.IsPlayer {
			break
		}

		result, err := eng.Attack(current.ID, playerCombatantID, 0)
		if err != nil {
			return lines, false, false, err
		}
		lines = append(lines, result.String())
		if result.TargetState != "" && result.Damage > 0 {
			lines = append(lines, result.TargetState)
		}

		if ended, victory := eng.CheckCombatEnd(); ended {
			return lines, true, victory, nil
		}
		if player := eng.Combatant(playerCombatantID); player != nil && !player.IsConscious {
			break
		}
	}
	return lines, false, false, nil
}

// finishCombat syncs the sheet, applies rewards on victory, and returns
// the session to exploration. Fleeing forfeits rewards and leaves
// once-only encounters armed.
func (o *Orchestrator) finishCombat(ctx context.Context, live *liveSession, victory bool, lines []string, fled bool) []string {
	eng := live.combat

	if player := eng.Combatant(playerCombatantID); player != nil {
		live.world.State().Character.HP.Current = player.HPCurrent
	}

	summary := eng.EndCombat()
	live.world.SetMode(entities.ModeExploration)

	encounterID := live.encounter
	live.encounter = ""

	switch {
	case fled:
		// nothing else to apply

	case victory:
		lines = append(lines, fmt.Sprintf("Victory! You earn %d XP.", summary.XPEarned))
		live.world.GrantXP(ctx, summary.XPEarned)

		if enc, err := live.world.Encounter(encounterID); err == nil {
			if enc.VictoryNarration != "" {
				lines = append(lines, enc.VictoryNarration)
			}
			live.world.GrantXP(ctx, enc.Rewards.XP)
			for _, flag := range enc.Rewards.SetsFlags {
				live.world.SetFlag(ctx, flag)
			}
			for _, item := range enc.Rewards.Items {
				live.world.GrantItem(item)
				lines = append(lines, "You find: "+item)
			}
			live.world.SetFlag(ctx, clearedFlag(encounterID))
		}

	default:
		lines = append(lines, "You have been defeated.")
		if enc, err := live.world.Encounter(encounterID); err == nil && enc.DefeatNarration != "" {
			lines = append(lines, enc.DefeatNarration)
		}
	}

	o.log.InfoContext(ctx, "combat ended",
		"encounter_id", encounterID,
		"victory", victory,
		"fled", fled,
		"rounds", summary.Rounds,
		"xp_earned", summary.XPEarned)

	return lines
}

// pickTarget chooses the attack target: an enemy named in the input, or
// the first conscious enemy in turn order.
func (o *Orchestrator) pickTarget(eng *combat.Engine, lower string) *entities.Combatant {
	var fallback *entities.Combatant
	for _, entry := range eng.Status().Entries {
		if entry.CombatantID == playerCombatantID || !entry.IsConscious {
			continue
		}
		c := eng.Combatant(entry.CombatantID)
		if c == nil {
			continue
		}
		if strings.Contains(lower, strings.ToLower(entry.Name)) {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}
