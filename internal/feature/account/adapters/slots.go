// Package adapters はaccountフィーチャーのリポジトリ実装を提供します。
// すべてのリポジトリは kv.Store のスロット上に JSON 文書として保存されます。
package adapters

// Store のスロット名。
const (
	SlotUsers         = "users"
	SlotHistory       = "history"
	SlotPlans         = "plans"
	sessionSlotPrefix = "session:"
)

// SessionSlot はセッションIDに対応するスロット名を返します。
func SessionSlot(sessionID string) string {
	return sessionSlotPrefix + sessionID
}
