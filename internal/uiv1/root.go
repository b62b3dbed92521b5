package uiv1

import "fmt"

// RootElement is an element of the always-present root UI (toolbar buttons
// and meters) whose press is routed to the current app mode.
type RootElement uint8

const (
	MenuButton RootElement = iota
	SquadButton
	AccountButton
	SettingsButton
	InboxButton
	StoreButton
	InventoryButton
	AchievementsButton
	GetTokensButton
	TicketsMeter
	TokensMeter
	TrophyMeter
	LevelMeter
	ChestSlot1
	ChestSlot2
	ChestSlot3
	ChestSlot4
	rootElementCount
)

var rootElementNames = [rootElementCount]string{
	MenuButton:         "menu_button",
	SquadButton:        "squad_button",
	AccountButton:      "account_button",
	SettingsButton:     "settings_button",
	InboxButton:        "inbox_button",
	StoreButton:        "store_button",
	InventoryButton:    "inventory_button",
	AchievementsButton: "achievements_button",
	GetTokensButton:    "get_tokens_button",
	TicketsMeter:       "tickets_meter",
	TokensMeter:        "tokens_meter",
	TrophyMeter:        "trophy_meter",
	LevelMeter:         "level_meter",
	ChestSlot1:         "chest_slot_1",
	ChestSlot2:         "chest_slot_2",
	ChestSlot3:         "chest_slot_3",
	ChestSlot4:         "chest_slot_4",
}

func (e RootElement) String() string {
	if e < rootElementCount {
		return rootElementNames[e]
	}
	return fmt.Sprintf("root_element(%d)", uint8(e))
}

// ParseRootElement parses a root element name such as "menu_button".
func ParseRootElement(s string) (RootElement, error) {
	for i, name := range rootElementNames {
		if name == s {
			return RootElement(i), nil
		}
	}
	return 0, fmt.Errorf("unknown root ui element %q", s)
}

// RootElements returns every root element in declaration order.
func RootElements() []RootElement {
	out := make([]RootElement, rootElementCount)
	for i := range out {
		out[i] = RootElement(i)
	}
	return out
}
