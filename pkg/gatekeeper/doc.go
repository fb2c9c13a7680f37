// Package gatekeeper ties the purchase client, group tier store, reconciler,
// consent manager and ad slots together behind one Engine.
//
// Identity resolution is a barrier. The Sequencer moves
// Idle -> ResolvingIdentity -> ResolvingTier -> Ready and consent gathering, ad SDK
// initialization and ad loading only start once it reports Ready. A group change
// moves Ready back to ResolvingTier until the new group's tier arrives.
//
//	engine := gatekeeper.New(cfg, gatekeeper.Deps{
//		PurchaseSDK: purchases,
//		ConsentSDK:  ump,
//		AdSDK:       admob,
//		Realtime:    redisTiers,
//		Snapshots:   redisSnapshots,
//		Lifecycle:   app,
//	}, gatekeeper.WithLogger(log))
//
//	if err := engine.Attach(ctx); err != nil {
//		return err
//	}
//	defer engine.Detach(ctx)
//
//	if err := engine.Identify(ctx, gatekeeper.Identity{UserID: uid, GroupID: gid}); err != nil {
//		return err
//	}
//
//	for msg := range engine.Watch(ctx).Receive() {
//		render(msg.Data)
//	}
//
// Logout detaches every listener before clearing timers, so no callback from the
// old session can touch the next one.
package gatekeeper
