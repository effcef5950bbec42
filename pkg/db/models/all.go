package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&CustomerProfile{},
		&PlanConfiguration{},
		&MsisdnInventory{},
		&Subscription{},
		&Invoice{},
		&PaymentAttempt{},
		&DeviceContract{},
		&DeviceInsurance{},
		&UsageCounter{},
		&FamilyPlan{},
		&FamilyMember{},
		&CorporateAccount{},
		&CorporateSubscription{},
		&RoamingPackage{},
		&RoamingActivation{},
		&PortingRequest{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
