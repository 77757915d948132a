package mocks

//go:generate mockery --name DayCacheStore --srcpkg github.com/powerbrief/scorecard/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name InsightsFetcher --srcpkg github.com/powerbrief/scorecard/internal/scorecard --output ./scorecard --outpkg scorecardmocks --with-expecter
