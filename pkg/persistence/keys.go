package persistence

// ストアのキー。既存の保存データを読み続けるため、名前は変更しません。
const (
	KeyTheme             = "ecoMatrixTheme"
	KeyTutorialCompleted = "ecoMatrixTutorialCompleted"
	KeyHistory           = "ecoMatrixComicHistory"
	KeyDraft             = "ecoMatrixDraft"
)

// テーマ
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// 通知メッセージ
const (
	MsgHistoryFull      = "Could not save to history: storage is full."
	MsgHistoryClearFail = "Could not clear history from storage."
	MsgDraftFull        = "Could not save draft: storage is full."
	MsgDraftSaveFail    = "Could not save draft."
	MsgDraftLoaded      = "Draft loaded successfully!"
	MsgDraftNotFound    = "No draft found to load."
	MsgDraftLoadFail    = "Could not load draft."
	MsgDraftCleared     = "Draft cleared."
	MsgSettingsSaveFail = "Could not save settings."
)
