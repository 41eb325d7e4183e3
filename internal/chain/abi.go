package chain

// registryABI 碳汇注册与交易合约的内置ABI
const registryABI = `[
	{"type":"function","name":"submitProject","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"},{"name":"location","type":"string"},{"name":"ecosystem","type":"string"},{"name":"cid","type":"string"}],
	 "outputs":[{"name":"projectId","type":"uint256"}]},
	{"type":"function","name":"approveProject","stateMutability":"nonpayable",
	 "inputs":[{"name":"projectId","type":"uint256"},{"name":"credits","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"rejectProject","stateMutability":"nonpayable",
	 "inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"issueCredits","stateMutability":"nonpayable",
	 "inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"listForSale","stateMutability":"nonpayable",
	 "inputs":[{"name":"amount","type":"uint256"},{"name":"pricePerToken","type":"uint256"}],
	 "outputs":[{"name":"listingId","type":"uint256"}]},
	{"type":"function","name":"buyListing","stateMutability":"payable",
	 "inputs":[{"name":"listingId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelListing","stateMutability":"nonpayable",
	 "inputs":[{"name":"listingId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"projectCount","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getProject","stateMutability":"view",
	 "inputs":[{"name":"projectId","type":"uint256"}],
	 "outputs":[{"name":"name","type":"string"},{"name":"location","type":"string"},{"name":"ecosystem","type":"string"},{"name":"submitter","type":"address"},{"name":"cid","type":"string"},{"name":"status","type":"uint8"},{"name":"credits","type":"uint256"}]},
	{"type":"function","name":"listingCount","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getListing","stateMutability":"view",
	 "inputs":[{"name":"listingId","type":"uint256"}],
	 "outputs":[{"name":"seller","type":"address"},{"name":"amount","type":"uint256"},{"name":"pricePerToken","type":"uint256"},{"name":"active","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalCreditsIssued","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"validator","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"ProjectSubmitted","anonymous":false,
	 "inputs":[{"indexed":true,"name":"projectId","type":"uint256"},{"indexed":true,"name":"submitter","type":"address"}]},
	{"type":"event","name":"ProjectStatusChanged","anonymous":false,
	 "inputs":[{"indexed":true,"name":"projectId","type":"uint256"},{"indexed":false,"name":"status","type":"uint8"},{"indexed":false,"name":"credits","type":"uint256"}]},
	{"type":"event","name":"ListingCreated","anonymous":false,
	 "inputs":[{"indexed":true,"name":"listingId","type":"uint256"},{"indexed":true,"name":"seller","type":"address"},{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"pricePerToken","type":"uint256"}]},
	{"type":"event","name":"ListingClosed","anonymous":false,
	 "inputs":[{"indexed":true,"name":"listingId","type":"uint256"},{"indexed":true,"name":"by","type":"address"},{"indexed":false,"name":"sold","type":"bool"}]}
]`

// 合约方法与事件名称
const (
	methodSubmitProject      = "submitProject"
	methodApproveProject     = "approveProject"
	methodRejectProject      = "rejectProject"
	methodIssueCredits       = "issueCredits"
	methodListForSale        = "listForSale"
	methodBuyListing         = "buyListing"
	methodCancelListing      = "cancelListing"
	methodProjectCount       = "projectCount"
	methodGetProject         = "getProject"
	methodListingCount       = "listingCount"
	methodGetListing         = "getListing"
	methodBalanceOf          = "balanceOf"
	methodTotalCreditsIssued = "totalCreditsIssued"
	methodValidator          = "validator"

	eventProjectSubmitted = "ProjectSubmitted"
	eventListingCreated   = "ListingCreated"
)
