package models

// DashboardSummary holds ticket and asset totals
type DashboardSummary struct {
	TotalTickets  int `json:"totalTickets"`
	OpenTickets   int `json:"openTickets"`
	ClosedTickets int `json:"closedTickets"`
	TotalAssets   int `json:"totalAssets"`
}

// AssetTicketCount is the number of tickets filed against one asset
type AssetTicketCount struct {
	AssetName string `json:"assetName"`
	Count     int    `json:"count"`
}

// TimelinePoint holds ticket counts created on one UTC day
type TimelinePoint struct {
	Date   string `json:"date"`
	Open   int    `json:"open"`
	Closed int    `json:"closed"`
}

// DashboardResponse is the admin analytics dashboard
type DashboardResponse struct {
	Summary        DashboardSummary   `json:"summary"`
	TicketsByAsset []AssetTicketCount `json:"ticketsByAsset"`
	Timeline       []TimelinePoint    `json:"timeline"`
}
