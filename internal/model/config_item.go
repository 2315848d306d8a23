package model

// ConfigItem is one persisted site configuration value.
type ConfigItem struct {
	Key         string `gorm:"primaryKey" json:"key"`
	Value       string `gorm:"not null;default:''" json:"value"`
	Type        string `gorm:"size:20;not null" json:"type"`
	Description string `gorm:"not null;default:''" json:"description"`
}

func (ConfigItem) TableName() string { return "config" }

// All lists every persisted model, in dependency order, for migration and
// flushing.
func All() []any {
	return []any{
		&Unit{}, &StockUnit{}, &VatBand{}, &VatRate{}, &Department{},
		&Supplier{}, &Delivery{}, &StockType{}, &StockItem{},
		&RemoveCode{}, &FinishCode{}, &StockAnnotation{},
		&StockLine{}, &StockOnSale{}, &PLU{}, &Modifier{},
		&KeyboardBinding{}, &Barcode{},
		&Session{}, &PayType{}, &SessionTotal{}, &SessionExport{},
		&Transaction{}, &Transline{}, &StockOut{}, &Payment{},
		&Permission{}, &Group{}, &User{}, &UserToken{},
		&ConfigItem{},
	}
}
